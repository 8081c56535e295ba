package agent

import (
	"math"

	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/htn"
)

// action is the runtime state machine behind one primitive task. begin runs once per
// fresh task start, tick once per frame until it reports completion, cancel only when the
// task is abandoned before completing.
type action interface {
	begin(a *Agent)
	tick(a *Agent, dt float64) bool
	cancel(a *Agent)
	steps() []SubStep
}

func newAction(k htn.Kind) action {
	switch k {
	case htn.KindPursue:
		return &pursueAction{}
	case htn.KindPickUp:
		return &pickUpAction{}
	case htn.KindThrow:
		return &throwAction{}
	case htn.KindGoToForage:
		return &goToForageAction{}
	case htn.KindForage:
		return &forageAction{}
	case htn.KindReturnHome:
		return &returnHomeAction{}
	case htn.KindWalkRandomly:
		return &walkRandomlyAction{}
	case htn.KindLookAround:
		return &lookAroundAction{}
	case htn.KindInvestigate:
		return &investigateAction{}
	default:
		return nil
	}
}

func stepNames(k htn.Kind) []string {
	switch k {
	case htn.KindPursue:
		return pursueSteps
	case htn.KindPickUp:
		return pickUpSteps
	case htn.KindThrow:
		return throwSteps
	case htn.KindGoToForage:
		return goToForageSteps
	case htn.KindForage:
		return forageSteps
	case htn.KindReturnHome:
		return returnHomeSteps
	case htn.KindWalkRandomly:
		return walkSteps
	case htn.KindLookAround:
		return lookSteps
	case htn.KindInvestigate:
		return investigateSteps
	default:
		return nil
	}
}

// randomPointNear picks a uniform point on the disc of radius r around c.
func randomPointNear(a *Agent, c geom.Vec3, r float64) geom.Vec3 {
	ang := a.rng.Float64() * 2 * math.Pi
	d := r * math.Sqrt(a.rng.Float64())
	return c.Add(geom.V(math.Sin(ang)*d, 0, math.Cos(ang)*d))
}

// faceTowards turns the body to look at p on the horizontal plane.
func faceTowards(a *Agent, p geom.Vec3) {
	dir := p.Sub(a.body.Position()).Flat()
	if dir.LenSq() > 1e-4 {
		a.body.RequestFaceDirection(dir.Normalize())
	}
}
