package physics

// Grid is a uniform grid used for broad-phase pair queries.
// Bodies outside the covered area are clamped into the border cells.
type Grid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]*Body
	seen     map[pairKey]struct{}
}

// NewGrid creates a grid covering [0,width]x[0,height]
func NewGrid(width, height, cellSize float64) *Grid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &Grid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]*Body, cols*rows),
		seen:     make(map[pairKey]struct{}),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *Grid) cellRange(box AABB) (minCX, minCY, maxCX, maxCY int) {
	minCX = g.clampCol(int(box.Min.X / g.cellSize))
	maxCX = g.clampCol(int(box.Max.X / g.cellSize))
	minCY = g.clampRow(int(box.Min.Y / g.cellSize))
	maxCY = g.clampRow(int(box.Max.Y / g.cellSize))
	return
}

func (g *Grid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds a body to every cell overlapping its bounding box
func (g *Grid) Insert(b *Body) {
	minCX, minCY, maxCX, maxCY := g.cellRange(b.Bounds())
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], b)
		}
	}
}

// Pairs appends every distinct pair of bodies sharing a cell with
// overlapping bounding boxes. The lower id is always first.
func (g *Grid) Pairs(buf [][2]*Body) [][2]*Body {
	clear(g.seen)
	for _, cell := range g.cells {
		for i := 0; i < len(cell); i++ {
			for j := i + 1; j < len(cell); j++ {
				a, b := cell[i], cell[j]
				if a.ID > b.ID {
					a, b = b, a
				}
				key := pairKey{a.ID, b.ID}
				if _, dup := g.seen[key]; dup {
					continue
				}
				g.seen[key] = struct{}{}
				if !a.Bounds().Overlaps(b.Bounds()) {
					continue
				}
				buf = append(buf, [2]*Body{a, b})
			}
		}
	}
	return buf
}
