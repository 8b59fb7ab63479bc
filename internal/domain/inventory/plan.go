package inventory

// Requirement is one order line as seen by the planner.
type Requirement struct {
	ProductID int64
	Quantity  int
}

// Plan turns requirements into one channel id per physical unit. Items are served
// in the given order; for each, layers and columns are scanned in ascending order
// and every matching channel is drained before moving on. The grid is never
// mutated: planning runs against a private copy, and an unmet requirement fails
// the whole plan with *InsufficientStockError.
func Plan(g *Grid, reqs []Requirement) ([]ChannelID, error) {
	work := g.Clone()
	sequence := make([]ChannelID, 0, totalUnits(reqs))

	for _, req := range reqs {
		need := req.Quantity
		for _, layer := range work.Layers() {
			if need <= 0 {
				break
			}
			for _, column := range work.Columns(layer) {
				if need <= 0 {
					break
				}
				ch := work.layers[layer][column]
				if !ch.Assigned() || ch.ProductID != req.ProductID {
					continue
				}
				for need > 0 && ch.Quantity > 0 {
					ch.Quantity--
					need--
					sequence = append(sequence, ChannelID{Layer: layer, Column: column})
				}
				work.layers[layer][column] = ch
			}
		}
		if need > 0 {
			return nil, &InsufficientStockError{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: req.Quantity - need,
			}
		}
	}
	return sequence, nil
}

func totalUnits(reqs []Requirement) int {
	n := 0
	for _, r := range reqs {
		if r.Quantity > 0 {
			n += r.Quantity
		}
	}
	return n
}
