// Package source adapts transaction streams to a single pull interface.
//
// Two streams feed the engine: a finite one of current entitlements used for
// restore, and an infinite, at-least-once one of updates consumed by the
// listener. Both are a Stream here; a finite stream ends with io.EOF.
package source

import (
	"context"
	"io"

	"github.com/roach88/entitle/internal/model"
)

// Element is one stream element: the verifier's verdict on a transaction,
// optionally accompanied by the renewal facts reported with it.
type Element struct {
	Result  model.VerificationResult
	Renewal *model.RawRenewalInfo

	settle func(processed bool) error
}

// Settle tells the transport the element is done with. processed=false asks
// for redelivery; sources without a transport ignore it.
func (e Element) Settle(processed bool) error {
	if e.settle == nil {
		return nil
	}
	return e.settle(processed)
}

// Stream yields elements one at a time. Next blocks until an element is
// available, ctx is done, or the stream ends (io.EOF).
type Stream interface {
	Next(ctx context.Context) (Element, error)
}

// Message is the wire and fixture shape of an element.
type Message struct {
	Verified    bool                  `json:"verified" yaml:"verified"`
	Cause       string                `json:"cause,omitempty" yaml:"cause,omitempty"`
	Transaction model.RawTransaction  `json:"transaction" yaml:"transaction"`
	RenewalInfo *model.RawRenewalInfo `json:"renewalInfo,omitempty" yaml:"renewalInfo,omitempty"`
}

// Element converts the message to a stream element.
func (m Message) Element() Element {
	return Element{
		Result: model.VerificationResult{
			Verified: m.Verified,
			Payload:  m.Transaction,
			Cause:    m.Cause,
		},
		Renewal: m.RenewalInfo,
	}
}

// SliceStream replays a fixed list of elements, then io.EOF.
type SliceStream struct {
	elems []Element
	pos   int
}

// FromSlice creates a finite stream over elems.
func FromSlice(elems ...Element) *SliceStream {
	return &SliceStream{elems: elems}
}

// FromResults creates a finite stream over bare verification results.
func FromResults(results ...model.VerificationResult) *SliceStream {
	elems := make([]Element, len(results))
	for i, r := range results {
		elems[i] = Element{Result: r}
	}
	return &SliceStream{elems: elems}
}

// Next implements Stream.
func (s *SliceStream) Next(ctx context.Context) (Element, error) {
	if err := ctx.Err(); err != nil {
		return Element{}, err
	}
	if s.pos >= len(s.elems) {
		return Element{}, io.EOF
	}
	e := s.elems[s.pos]
	s.pos++
	return e, nil
}

// Len returns the total number of elements, consumed or not.
func (s *SliceStream) Len() int { return len(s.elems) }

// ChanStream reads elements from a channel. Closing the channel ends the
// stream.
type ChanStream struct {
	ch <-chan Element
}

// FromChan creates a stream over ch.
func FromChan(ch <-chan Element) *ChanStream {
	return &ChanStream{ch: ch}
}

// Next implements Stream.
func (s *ChanStream) Next(ctx context.Context) (Element, error) {
	select {
	case <-ctx.Done():
		return Element{}, ctx.Err()
	case e, ok := <-s.ch:
		if !ok {
			return Element{}, io.EOF
		}
		return e, nil
	}
}

// Collect drains a finite stream into a slice.
func Collect(ctx context.Context, s Stream) ([]Element, error) {
	var out []Element
	for {
		e, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
