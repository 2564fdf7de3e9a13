// Package resolver implements a stub and iterative DNS resolver on top
// of the wire codec in internal/dns: ordered-nameserver retry, search
// list expansion, UDP with TCP fallback on truncation, background
// (send/poll/read) queries, AXFR zone transfers, and referral-following
// recursive resolution.
//
// A Resolver is not safe for concurrent use; create one per goroutine
// or serialize access externally.
package resolver

import "errors"

var (
	// ErrNoResponse is returned when every configured nameserver and
	// retry has been exhausted without a usable response. The resolver's
	// Errorstring method carries the last transport-level detail.
	ErrNoResponse = errors.New("no response from any nameserver")

	// ErrTruncated is returned when a response remains truncated after
	// the TCP fallback already ran, so no larger rendition exists.
	ErrTruncated = errors.New("response truncated")

	// ErrReferralLoop is returned when recursive resolution revisits a
	// delegation or exceeds the referral depth bound.
	ErrReferralLoop = errors.New("referral loop detected")
)
