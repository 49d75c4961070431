package diskqueue

// fenceState tracks, per storage, whether a fencing job is active and the
// jobs queued behind it (spec §4.F storage fence).
type fenceState struct {
	active       bool
	pendingFence *Job // a fence job waiting for outstanding non-fence jobs to drain
	outstanding  int  // non-fence jobs queued or executing
	blocked      []*Job
}

func (q *Queue) fenceFor(storageID string) *fenceState {
	fs, ok := q.fences[storageID]
	if !ok {
		fs = &fenceState{}
		q.fences[storageID] = fs
	}
	return fs
}

// submitLocked routes j either straight to a ready queue or behind a fence,
// per spec §4.F. Caller holds q.mu.
func (q *Queue) submitLocked(j *Job) {
	fs := q.fenceFor(j.StorageID)

	if fs.active || fs.pendingFence != nil {
		fs.blocked = append(fs.blocked, j)
		return
	}

	if j.Kind.RequiresFence() {
		if fs.outstanding > 0 {
			fs.pendingFence = j
			return
		}
		fs.active = true
		q.enqueueReadyLocked(j)
		return
	}

	fs.outstanding++
	q.enqueueReadyLocked(j)
}

// completeFenceLocked updates fence bookkeeping once j's handler has run.
// Caller holds q.mu.
func (q *Queue) completeFenceLocked(j *Job) {
	fs := q.fenceFor(j.StorageID)

	if j.Kind.RequiresFence() {
		fs.active = false
		q.releaseBlockedLocked(fs)
		return
	}

	fs.outstanding--
	if fs.outstanding == 0 && fs.pendingFence != nil {
		pf := fs.pendingFence
		fs.pendingFence = nil
		fs.active = true
		q.enqueueReadyLocked(pf)
	}
}

// releaseBlockedLocked releases a storage's blocked jobs in submission
// order, stopping (leaving the rest blocked) at the next fence job, which
// must itself run alone before anything after it can proceed.
func (q *Queue) releaseBlockedLocked(fs *fenceState) {
	blocked := fs.blocked
	fs.blocked = nil

	for i, bj := range blocked {
		if bj.Kind.RequiresFence() {
			if fs.outstanding > 0 {
				fs.pendingFence = bj
			} else {
				fs.active = true
				q.enqueueReadyLocked(bj)
			}
			fs.blocked = append(fs.blocked, blocked[i+1:]...)
			return
		}
		fs.outstanding++
		q.enqueueReadyLocked(bj)
	}
}

// abortStorageLocked implements stop_torrent's "abort all queued jobs for
// a storage with operation_aborted before issuing the fence": every job
// not yet executing — ready, hash-ready, blocked, or a not-yet-activated
// pending fence — is pulled out and failed immediately.
func (q *Queue) abortStorageLocked(storageID string) {
	fs := q.fenceFor(storageID)

	// Jobs still sitting in a ready queue may already have been counted
	// in the fence bookkeeping (non-fence jobs increment fs.outstanding
	// on submit; a fence job that just activated is enqueued with
	// fs.active already true). Pulling them out without unwinding that
	// bookkeeping would leave fs stuck thinking work is outstanding, or
	// active, forever.
	var queued []*Job
	q.ready, queued = filterOutStorage(q.ready, storageID, &queued)
	q.hashReady, queued = filterOutStorage(q.hashReady, storageID, &queued)
	for _, j := range queued {
		if j.Kind.RequiresFence() {
			fs.active = false
		} else {
			fs.outstanding--
		}
	}

	aborted := queued
	aborted = append(aborted, fs.blocked...)
	fs.blocked = nil
	if fs.pendingFence != nil {
		aborted = append(aborted, fs.pendingFence)
		fs.pendingFence = nil
	}

	for _, j := range aborted {
		if j.Kind == KindWrite {
			q.queuedWriteBytes -= j.Bytes
		}
		q.postAbortedLocked(j)
	}
}

func filterOutStorage(jobs []*Job, storageID string, removed *[]*Job) ([]*Job, []*Job) {
	kept := jobs[:0:0]
	for _, j := range jobs {
		if j.StorageID == storageID {
			*removed = append(*removed, j)
			continue
		}
		kept = append(kept, j)
	}
	return kept, *removed
}
