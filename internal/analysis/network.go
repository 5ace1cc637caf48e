package analysis

import "sort"

// Flow is an aggregated supplier-to-customer edge.
type Flow struct {
	Supplier  string `json:"supplier"`
	Customer  string `json:"customer"`
	Units     int    `json:"units"`
	Shipments int    `json:"shipments"`
}

// Network is the node/edge view used by the flow graph.
type Network struct {
	Suppliers []string `json:"suppliers"`
	Customers []string `json:"customers"`
	Flows     []Flow   `json:"flows"`
}

// BuildNetwork aggregates supplier->customer flows, keeps the limit heaviest
// (all when limit <= 0) and lists the nodes those flows touch.
func BuildNetwork(records []Record, limit int) Network {
	type edge struct{ s, c string }
	idx := map[edge]int{}
	var flows []Flow
	for _, r := range records {
		e := edge{r.SupplierID(), r.CustomerID()}
		i, ok := idx[e]
		if !ok {
			i = len(flows)
			idx[e] = i
			flows = append(flows, Flow{Supplier: e.s, Customer: e.c})
		}
		flows[i].Units += r.Number
		flows[i].Shipments++
	}
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].Units > flows[j].Units })
	if limit > 0 && len(flows) > limit {
		flows = flows[:limit]
	}

	n := Network{Suppliers: []string{}, Customers: []string{}, Flows: []Flow{}}
	seenS := map[string]struct{}{}
	seenC := map[string]struct{}{}
	for _, f := range flows {
		n.Flows = append(n.Flows, f)
		if _, ok := seenS[f.Supplier]; !ok {
			seenS[f.Supplier] = struct{}{}
			n.Suppliers = append(n.Suppliers, f.Supplier)
		}
		if _, ok := seenC[f.Customer]; !ok {
			seenC[f.Customer] = struct{}{}
			n.Customers = append(n.Customers, f.Customer)
		}
	}
	return n
}
