package model

// ColumnKind classifies a column by the boxes it may carry. Mixed columns
// only occur on one-box-reversal charts, where a single column can hold
// both X and O boxes.
type ColumnKind string

const (
	ColumnX     ColumnKind = "X"
	ColumnO     ColumnKind = "O"
	ColumnMixed ColumnKind = "MIXED"
)

// Column is an ordered run of boxes. Boxes keep insertion order, box
// prices within a column are unique, and BoxSize records the box size in
// effect when the column was opened.
type Column struct {
	Kind    ColumnKind `json:"kind"`
	Boxes   []Box      `json:"boxes"`
	BoxSize float64    `json:"box_size"`
}

// NewColumn returns an empty column of the given kind.
func NewColumn(kind ColumnKind, boxSize float64) *Column {
	return &Column{Kind: kind, BoxSize: boxSize}
}

// Add appends a box, rejecting a duplicate at the same price.
func (c *Column) Add(b Box) bool {
	if c.Has(b.Price) {
		return false
	}
	c.Boxes = append(c.Boxes, b)
	return true
}

// Remove deletes the box at exactly price, reporting whether one existed.
func (c *Column) Remove(price float64) bool {
	for i, b := range c.Boxes {
		if b.Price == price {
			c.Boxes = append(c.Boxes[:i], c.Boxes[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether a box exists at exactly price.
func (c *Column) Has(price float64) bool {
	for _, b := range c.Boxes {
		if b.Price == price {
			return true
		}
	}
	return false
}

// Box returns the box at exactly price, or nil.
func (c *Column) Box(price float64) *Box {
	for i := range c.Boxes {
		if c.Boxes[i].Price == price {
			return &c.Boxes[i]
		}
	}
	return nil
}

// Marker returns the marker of the box at price, or "" if absent.
func (c *Column) Marker(price float64) string {
	if b := c.Box(price); b != nil {
		return b.Marker
	}
	return ""
}

// SetMarker labels the box at price, reporting whether it existed.
func (c *Column) SetMarker(price float64, marker string) bool {
	if b := c.Box(price); b != nil {
		b.Marker = marker
		return true
	}
	return false
}

// Count returns the number of boxes in the column.
func (c *Column) Count() int { return len(c.Boxes) }

// Highest returns the highest box price, or 0 for an empty column.
func (c *Column) Highest() float64 {
	if len(c.Boxes) == 0 {
		return 0
	}
	h := c.Boxes[0].Price
	for _, b := range c.Boxes[1:] {
		if b.Price > h {
			h = b.Price
		}
	}
	return h
}

// Lowest returns the lowest box price, or 0 for an empty column.
func (c *Column) Lowest() float64 {
	if len(c.Boxes) == 0 {
		return 0
	}
	l := c.Boxes[0].Price
	for _, b := range c.Boxes[1:] {
		if b.Price < l {
			l = b.Price
		}
	}
	return l
}

// Midpoint returns (Highest+Lowest)/2, the per-column price proxy the
// indicator suite averages over.
func (c *Column) Midpoint() float64 {
	if len(c.Boxes) == 0 {
		return 0
	}
	return (c.Highest() + c.Lowest()) / 2
}

// Clear removes all boxes.
func (c *Column) Clear() { c.Boxes = c.Boxes[:0] }
