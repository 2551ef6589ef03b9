package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

var namedKeys = map[glfw.Key]string{
	glfw.KeyLeft:   "left",
	glfw.KeyRight:  "right",
	glfw.KeyUp:     "up",
	glfw.KeyDown:   "down",
	glfw.KeyEscape: "escape",
	glfw.KeySpace:  "space",
}

//keyboard collects glfw key events between frames. Pressed keys are kept
//until the frame that observes them calls next.
type keyboard struct {
	held    map[string]bool
	pressed map[string]bool
}

func newKeyboard(window *glfw.Window) *keyboard {
	k := &keyboard{held: make(map[string]bool), pressed: make(map[string]bool)}
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, _ glfw.ModifierKey) {
		name, ok := namedKeys[key]
		if !ok {
			if name = glfw.GetKeyName(key, scancode); name == "" {
				return
			}
		}
		switch action {
		case glfw.Press:
			k.held[name] = true
			k.pressed[name] = true
		case glfw.Release:
			delete(k.held, name)
		}
	})
	return k
}

func (k *keyboard) KeyHeld(key string) bool    { return k.held[key] }
func (k *keyboard) KeyPressed(key string) bool { return k.pressed[key] }

//next forgets the presses the last frame has seen
func (k *keyboard) next() {
	for name := range k.pressed {
		delete(k.pressed, name)
	}
}
