package scene

//Fader moves Value toward Target at Rate units per second and never leaves
//[0, 1]
type Fader struct {
	Value  float32
	Target float32
	Rate   float32
}

//Toggle flips the target between the two ends
func (f *Fader) Toggle() {
	if f.Target == 1 {
		f.Target = 0
	} else {
		f.Target = 1
	}
}

//Step advances by dt seconds and returns the new value
func (f *Fader) Step(dt float32) float32 {
	move := f.Rate * dt
	switch {
	case f.Value < f.Target:
		f.Value += move
		if f.Value > f.Target {
			f.Value = f.Target
		}
	case f.Value > f.Target:
		f.Value -= move
		if f.Value < f.Target {
			f.Value = f.Target
		}
	}
	f.Value = clamp01(f.Value)
	return f.Value
}

func (f *Fader) Done() bool { return f.Value == f.Target }

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
