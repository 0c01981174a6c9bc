package capture

import "fmt"

// OpenFunc opens one kind of source.
type OpenFunc func(d Descriptor) (Source, error)

// Dispatcher routes descriptors to the opener for their kind and applies the working size.
type Dispatcher struct {
	openers     map[Kind]OpenFunc
	workingSize int
}

// NewDispatcher returns a dispatcher that opens still images itself. Camera and video
// openers are registered with Handle. workingSize <= 0 keeps frames at native size.
func NewDispatcher(workingSize int) *Dispatcher {
	d := &Dispatcher{
		openers:     make(map[Kind]OpenFunc),
		workingSize: workingSize,
	}
	d.Handle(KindImage, func(desc Descriptor) (Source, error) {
		return OpenImage(desc.Path)
	})
	return d
}

// Handle registers the opener for a kind, replacing any previous one.
func (d *Dispatcher) Handle(kind Kind, fn OpenFunc) {
	d.openers[kind] = fn
}

// Open implements Opener.
func (d *Dispatcher) Open(desc Descriptor) (Source, error) {
	fn, ok := d.openers[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no opener for %s", ErrSourceUnavailable, desc.Kind)
	}
	src, err := fn(desc)
	if err != nil {
		return nil, err
	}
	return Resize(src, d.workingSize, d.workingSize), nil
}
