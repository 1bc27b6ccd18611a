package inventory

import "sort"

// StatusChange records one vehicle whose status differs between the two
// compared campaigns.
type StatusChange struct {
	VehicleID string       `json:"vehicleId"`
	From      ResultStatus `json:"from"`
	To        ResultStatus `json:"to"`
}

// Comparison classifies every vehicle touched by either of two campaigns.
type Comparison struct {
	NewlyFound    []string       `json:"newlyFound"`
	NowMissing    []string       `json:"nowMissing"`
	StatusChanged []StatusChange `json:"statusChanged"`
	Unchanged     []string       `json:"unchanged"`
}

// CompareResults is a pure set classification over two result maps keyed
// by vehicle id. Classification rules, earlier campaign a against later
// campaign b:
//
//   - no record in a, found in b        -> newly found
//   - found in a, missing in b         -> now missing
//   - recorded in a, absent from b     -> now missing
//   - both recorded, other difference  -> status changed {from, to}
//   - both recorded, same status       -> unchanged
//
// Output slices are sorted by vehicle id so the result is independent of
// map iteration order.
func CompareResults(a, b map[string]Result) Comparison {
	cmp := Comparison{
		NewlyFound:    []string{},
		NowMissing:    []string{},
		StatusChanged: []StatusChange{},
		Unchanged:     []string{},
	}

	for id, after := range b {
		before, recorded := a[id]
		switch {
		case !recorded:
			if after.Status == ResultFound {
				cmp.NewlyFound = append(cmp.NewlyFound, id)
			}
		case before.Status == after.Status:
			cmp.Unchanged = append(cmp.Unchanged, id)
		case before.Status == ResultFound && after.Status == ResultMissing:
			cmp.NowMissing = append(cmp.NowMissing, id)
		default:
			cmp.StatusChanged = append(cmp.StatusChanged, StatusChange{
				VehicleID: id,
				From:      before.Status,
				To:        after.Status,
			})
		}
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			cmp.NowMissing = append(cmp.NowMissing, id)
		}
	}

	sort.Strings(cmp.NewlyFound)
	sort.Strings(cmp.NowMissing)
	sort.Strings(cmp.Unchanged)
	sort.Slice(cmp.StatusChanged, func(i, j int) bool {
		return cmp.StatusChanged[i].VehicleID < cmp.StatusChanged[j].VehicleID
	})
	return cmp
}
