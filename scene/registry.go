//Package scene is the object layer the frame loop draws from: a
//generational registry of objects, their transforms and behaviors, a camera
//and the fader driving the renderer's texture blend.
package scene

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk"
)

//ID names an object in a Registry. The low 32 bits are the slot index plus
//one, the high 32 bits the slot generation. The zero ID is never valid.
type ID uint64

func makeID(index int, gen uint32) ID { return ID(uint64(gen)<<32 | uint64(index+1)) }

func (id ID) index() int  { return int(uint32(id)) - 1 }
func (id ID) gen() uint32 { return uint32(id >> 32) }
func (id ID) Valid() bool { return uint32(id) != 0 }

//Object is one drawable thing in the world
type Object struct {
	Name      string
	Transform Transform
	Mesh      scopvk.MeshID
	Material  scopvk.InstanceID
	Behavior  Behavior
}

type slot struct {
	gen    uint32
	live   bool
	object Object
}

//Registry stores objects in reusable slots. Removing an object bumps its
//slot generation so IDs handed out earlier stop resolving.
type Registry struct {
	slots []slot
	free  []int
	count int
}

func NewRegistry() *Registry {
	return &Registry{}
}

//Add stores o and returns its ID
func (r *Registry) Add(o Object) ID {
	var i int
	if n := len(r.free); n > 0 {
		i, r.free = r.free[n-1], r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		i = len(r.slots) - 1
	}
	s := &r.slots[i]
	s.live = true
	s.object = o
	r.count++
	return makeID(i, s.gen)
}

//Get returns the live object behind id or nil. The pointer stays valid until
//the next Add or Remove.
func (r *Registry) Get(id ID) *Object {
	i := id.index()
	if !id.Valid() || i >= len(r.slots) {
		return nil
	}
	s := &r.slots[i]
	if !s.live || s.gen != id.gen() {
		return nil
	}
	return &s.object
}

//Remove deletes the object behind id
func (r *Registry) Remove(id ID) error {
	if r.Get(id) == nil {
		return errors.Newf("scene: object %#x is not live", uint64(id))
	}
	s := &r.slots[id.index()]
	s.live = false
	s.object = Object{}
	s.gen++
	r.free = append(r.free, id.index())
	r.count--
	return nil
}

//Each visits live objects in slot order. Objects must not be added or
//removed from fn.
func (r *Registry) Each(fn func(id ID, o *Object)) {
	for i := range r.slots {
		if s := &r.slots[i]; s.live {
			fn(makeID(i, s.gen), &s.object)
		}
	}
}

func (r *Registry) Len() int { return r.count }
