package packet

import "reflect"

// tagKey identifies a tag by its Go type.
type tagKey = reflect.Type

func keyOf[T any]() tagKey {
	return reflect.TypeOf((*T)(nil)).Elem() // equivalent to reflect.TypeFor[T]() (Go 1.22+)
}

// SetTag attaches v to p, replacing any tag of the same type. Tags are
// stored by value, so a later change to v does not affect p.
func SetTag[T any](p *Packet, v T) {
	if p.tags == nil {
		p.tags = make(map[tagKey]any)
	}
	p.tags[keyOf[T]()] = v
}

// FindTag returns the tag of type T and whether it is present.
func FindTag[T any](p *Packet) (T, bool) {
	v, ok := p.tags[keyOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// HasTag reports whether p carries a tag of type T.
func HasTag[T any](p *Packet) bool {
	_, ok := p.tags[keyOf[T]()]
	return ok
}

// RemoveTag detaches the tag of type T and returns it.
func RemoveTag[T any](p *Packet) (T, bool) {
	v, ok := FindTag[T](p)
	if ok {
		delete(p.tags, keyOf[T]())
	}
	return v, ok
}

// NumTags returns the number of attached tags.
func (p *Packet) NumTags() int { return len(p.tags) }

// copyTagsFrom replaces p's tags with a copy of src's.
func (p *Packet) copyTagsFrom(src *Packet) {
	p.tags = nil
	for k, v := range src.tags {
		if p.tags == nil {
			p.tags = make(map[tagKey]any, len(src.tags))
		}
		p.tags[k] = v
	}
}
