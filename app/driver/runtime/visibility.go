package runtime

// VisibilityNotifier implements port.VisibilityObserver. Hosts report
// becoming visible through Notify, typically via the REST surface; signals
// coalesce while the coordinator is busy.
type VisibilityNotifier struct {
	ch chan struct{}
}

func NewVisibilityNotifier() *VisibilityNotifier {
	return &VisibilityNotifier{ch: make(chan struct{}, 1)}
}

// Notify records a visibility transition. Never blocks.
func (n *VisibilityNotifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *VisibilityNotifier) Visible() <-chan struct{} {
	return n.ch
}
