package history

// PendingSpeeds lists the speeds of samples not yet written, oldest first.
func PendingSpeeds(r Repository) []float64 {
	repo := r.(*repository)

	repo.mu.Lock()
	defer repo.mu.Unlock()

	speeds := make([]float64, 0, len(repo.buffer))
	for _, p := range repo.buffer {
		speeds = append(speeds, p.rec.Snapshot.SpeedKmh)
	}

	return speeds
}
