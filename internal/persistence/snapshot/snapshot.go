package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"cavewarden.ai/internal/sim/agent"
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is an inspection dump of an arena. Plans travel only as overlay data and are
// never restored from it.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed         int64   `json:"seed"`
	TickRate     int     `json:"tick_rate_hz"`
	HalfExtent   float64 `json:"half_extent"`
	DomainDigest string  `json:"domain_digest"`
	Outcome      string  `json:"outcome,omitempty"`

	Target    TargetV1         `json:"target"`
	Treasures []geom.Vec3      `json:"treasures"`
	Items     []ItemV1         `json:"items"`
	Agents    []agent.Snapshot `json:"agents"`
}

type TargetV1 struct {
	Pos      geom.Vec3 `json:"pos"`
	Lives    int       `json:"lives"`
	Cloaked  bool      `json:"cloaked"`
	Carrying bool      `json:"carrying"`
	Stolen   int       `json:"stolen"`
}

type ItemV1 struct {
	Item       registry.Item `json:"item"`
	ReservedBy string        `json:"reserved_by,omitempty"`
}

// Header line is plain JSON so tools can peek without decoding the gob body.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
