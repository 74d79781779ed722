package domain

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the ordered set of lines, unique by product id.
type CartSnapshot struct {
	Lines []CartLine `json:"lines"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s CartSnapshot) Find(productID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

func (s CartSnapshot) Clone() CartSnapshot {
	lines := make([]CartLine, len(s.Lines))
	copy(lines, s.Lines)
	return CartSnapshot{Lines: lines}
}

// Upsert replaces the line with the same product id or appends it.
func (s *CartSnapshot) Upsert(line CartLine) {
	for i := range s.Lines {
		if s.Lines[i].ProductID == line.ProductID {
			s.Lines[i] = line
			return
		}
	}
	s.Lines = append(s.Lines, line)
}

func (s *CartSnapshot) Remove(productID string) bool {
	for i := range s.Lines {
		if s.Lines[i].ProductID == productID {
			s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// SellerIDs returns the distinct seller ids of the lines in order of first appearance.
func (s CartSnapshot) SellerIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, l := range s.Lines {
		id := l.Product.SellerID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
