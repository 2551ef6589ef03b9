package scopvk

import "github.com/andewx/scopvk/driver"

//QueueFamily is an immutable description of one device queue family together
//with the queue handles created for it.
type QueueFamily struct {
	Index   uint32
	Flags   driver.QueueFlags
	Present bool
	Queues  []driver.Queue
}

//Supports reports whether the family has every capability in flags
func (f QueueFamily) Supports(flags driver.QueueFlags) bool {
	return f.Flags&flags == flags
}

//Device queue properties are per device and constructed from the device
type CoreQueue struct {
	binded   []bool
	families []QueueFamily
}

//List queue families available for a device and fetch one queue handle per family queue
func NewCoreQueue(gpu driver.GPU) *CoreQueue {
	var q CoreQueue
	props := gpu.QueueFamilies()
	if len(props) == 0 {
		return nil
	}
	q.binded = make([]bool, len(props))
	q.families = make([]QueueFamily, len(props))
	for i, p := range props {
		fam := QueueFamily{Index: p.Index, Flags: p.Flags, Present: p.Present}
		for n := uint32(0); n < p.Count; n++ {
			fam.Queues = append(fam.Queues, gpu.Queue(p.Index, n))
		}
		q.families[i] = fam
	}
	return &q
}

func (q *CoreQueue) Families() []QueueFamily {
	return q.families
}

//Checks if device is suitable for queue operations
func (q *CoreQueue) IsDeviceSuitable(flags driver.QueueFlags) bool {
	ok, _ := q.FindSuitableQueue(flags)
	return ok
}

//Finds a suitable queue family given flag bits does not check if the queue is already being used
func (q *CoreQueue) FindSuitableQueue(flags driver.QueueFlags) (bool, int) {
	for index, fam := range q.families {
		if fam.Supports(flags) {
			return true, index
		}
	}
	return false, 0
}

//Finds a suitable queue family given flag bits skipping families already bound
func (q *CoreQueue) FindSuitableUnboundQueue(flags driver.QueueFlags) (bool, int) {
	for index, fam := range q.families {
		if fam.Supports(flags) && !q.binded[index] {
			return true, index
		}
	}
	return false, 0
}

//Function to gather graphics / present primary queue. The first unbound family with
//both capabilities wins.
func (q *CoreQueue) BindGraphicsQueue() (bool, driver.Queue, int) {
	for index, fam := range q.families {
		if fam.Supports(driver.QueueGraphics) && fam.Present && !q.binded[index] && len(fam.Queues) > 0 {
			q.binded[index] = true
			return true, fam.Queues[0], index
		}
	}
	return false, 0, 0
}

//Bind marks a family as used by a context
func (q *CoreQueue) Bind(index int) {
	q.binded[index] = true
}

//Checks if queue is already being used in a specific context. This
//can be used when a separate queue is desired for example for separate
//transfer work
func (q *CoreQueue) IsBound(index int) bool {
	return q.binded[index]
}
