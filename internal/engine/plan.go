package engine

// PlanDeletes returns the remote records whose external id is absent from
// the source: remote index keys minus source ids. The result is ordered by
// folded external id. Upserts need no plan: every source record is attempted.
func PlanDeletes(ix *RemoteIndex, sourceIDs *IDSet) []RemoteRecord {
	var out []RemoteRecord
	for _, rec := range ix.Records() {
		if !sourceIDs.Contains(rec.ExternalID) {
			out = append(out, rec)
		}
	}
	return out
}
