package reconcile

// Optimistic runs one optimistic transition: capture the prior state,
// apply the local change immediately, then attempt the remote write. On
// failure the captured prior state is restored exactly, never re-derived,
// so a failed write can only ever flash and revert.
func Optimistic[S any](capture func() S, apply func(), commit func() error, restore func(S)) error {
	prior := capture()
	apply()
	if err := commit(); err != nil {
		restore(prior)
		return err
	}
	return nil
}
