package scene

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
)

//Behavior is the per frame motion an object runs on its own, on top of the
//world orientation
type Behavior int

const (
	BehaviorNone Behavior = iota
	//BehaviorSpin turns the object around its yaw axis
	BehaviorSpin
	//BehaviorBob moves the object up and down around where it was placed
	BehaviorBob
)

const (
	spinRate     = 1.2 // radians per second
	bobAmplitude = 0.5
	bobFrequency = 2.0 // radians per second
)

func (b Behavior) String() string {
	switch b {
	case BehaviorNone:
		return "none"
	case BehaviorSpin:
		return "spin"
	case BehaviorBob:
		return "bob"
	}
	return "Behavior(" + strconv.Itoa(int(b)) + ")"
}

//ParseBehavior is the inverse of String
func ParseBehavior(s string) (Behavior, error) {
	switch s {
	case "none", "":
		return BehaviorNone, nil
	case "spin":
		return BehaviorSpin, nil
	case "bob":
		return BehaviorBob, nil
	}
	return BehaviorNone, errors.Newf("scene: unknown behavior %q", s)
}

//step advances o by dt seconds. elapsed is the scene time after the step.
//Bob moves by the difference of two samples so the placed height is kept
//without storing it.
func (b Behavior) step(o *Object, elapsed, dt float32) {
	switch b {
	case BehaviorNone:
	case BehaviorSpin:
		o.Transform.Rotation[1] += spinRate * dt
	case BehaviorBob:
		now := math.Sin(float64(elapsed * bobFrequency))
		before := math.Sin(float64((elapsed - dt) * bobFrequency))
		o.Transform.Translation[1] += bobAmplitude * float32(now-before)
	default:
		panic(errors.AssertionFailedf("scene: object %q has unknown behavior %d", o.Name, int(b)))
	}
}
