package arena

import (
	"cavewarden.ai/internal/persistence/snapshot"
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
)

// ExportSnapshot captures the arena for offline inspection. Call it from the loop
// goroutine or after Run has returned.
func (w *World) ExportSnapshot(runID, domainDigest string) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			RunID:   runID,
			Tick:    w.CurrentTick(),
		},
		Seed:         w.cfg.Arena.Seed,
		TickRate:     w.cfg.TickRateHz,
		HalfExtent:   w.cfg.Arena.HalfExtent,
		DomainDigest: domainDigest,
		Outcome:      string(w.outcome),
		Target: snapshot.TargetV1{
			Pos:      w.target.Position(),
			Lives:    w.target.Lives(),
			Cloaked:  w.target.Cloaked(),
			Carrying: w.target.Carrying(),
			Stolen:   w.target.Stolen(),
		},
		Treasures: append([]geom.Vec3(nil), w.treasures...),
		Agents:    w.Snapshots(),
	}
	for _, kind := range []registry.Kind{registry.HeavyObject, registry.ForagePoint} {
		for _, it := range w.reg.List(kind) {
			owner, _ := w.reg.ReservedBy(it.Handle)
			snap.Items = append(snap.Items, snapshot.ItemV1{Item: it, ReservedBy: owner})
		}
	}
	return snap
}
