package tui

import "github.com/mmcdole/pickflix/internal/picker"

// ChannelObserver adapts picker.Observer to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan picker.State
}

// NewChannelObserver creates an observer with a small buffer.
func NewChannelObserver() *ChannelObserver {
	return &ChannelObserver{ch: make(chan picker.State, 8)}
}

// OnState sends state to the channel without blocking the picker. When the
// buffer is full the oldest state is dropped; the newest always survives.
func (o *ChannelObserver) OnState(state picker.State) {
	for {
		select {
		case o.ch <- state:
			return
		default:
		}
		select {
		case <-o.ch:
		default:
		}
	}
}

// States returns the receive side for WaitForStateCmd.
func (o *ChannelObserver) States() <-chan picker.State {
	return o.ch
}
