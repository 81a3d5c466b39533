package action

// channel identifies one family of handler registrations.
type channel string

const (
	chanException      channel = "exception"
	chanFailure        channel = "failure"
	chanError          channel = "error"
	chanSuccess        channel = "success"
	chanErrorMessage   channel = "error.message"
	chanSuccessMessage channel = "success.message"
)

// registry is an immutable, insertion-ordered multimap from channel to
// handler descriptors. Every registration returns a fresh registry, so a
// derived action can extend its parent's registrations without aliasing.
// Registrations are prepended: the most recently declared descriptor for a
// channel is consulted first, which is what gives later declarations (and
// children over parents) override priority.
type registry struct {
	entries map[channel][]*descriptor
}

func newRegistry() *registry {
	return &registry{entries: map[channel][]*descriptor{}}
}

// register returns a new registry with d prepended to the channel's list.
// The receiver is never modified.
func (r *registry) register(ch channel, d *descriptor) *registry {
	next := &registry{entries: make(map[channel][]*descriptor, len(r.entries)+1)}
	for k, v := range r.entries {
		next.entries[k] = v
	}

	prev := r.entries[ch]
	list := make([]*descriptor, 0, len(prev)+1)
	list = append(list, d)
	list = append(list, prev...)
	next.entries[ch] = list

	return next
}

// handlers returns the descriptors registered for a channel, most recently
// declared first. Unknown channels yield an empty list. Callers must not
// modify the returned slice.
func (r *registry) handlers(ch channel) []*descriptor {
	return r.entries[ch]
}
