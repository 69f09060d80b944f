package visualization

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"stedalign/internal/models"
)

// planeGrid adapts a row-major square plane to the plotter grid interface.
type planeGrid struct {
	data []float64
	res  int
}

func (g planeGrid) Dims() (c, r int)   { return g.res, g.res }
func (g planeGrid) Z(c, r int) float64 { return g.data[r*g.res+c] }
func (g planeGrid) X(c int) float64    { return float64(c) }
func (g planeGrid) Y(r int) float64    { return float64(r) }

// maskGrid adapts a dense phase mask to the plotter grid interface.
type maskGrid struct {
	m *mat.Dense
}

func (g maskGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}
func (g maskGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g maskGrid) X(c int) float64    { return float64(c) }
func (g maskGrid) Y(r int) float64    { return float64(r) }

// constantGrid reports whether every grid value equals the first one; such
// grids carry no information and break the palette scaling.
func constantGrid(g plotter.GridXYZ) bool {
	c, r := g.Dims()
	if c == 0 || r == 0 {
		return true
	}
	first := g.Z(0, 0)
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			if g.Z(i, j) != first {
				return false
			}
		}
	}
	return true
}

// heatMap builds a titled heat-map plot of the grid.
func heatMap(title string, g plotter.GridXYZ) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "px"
	p.Y.Label.Text = "px"
	p.Add(plotter.NewHeatMap(g, palette.Heat(12, 1)))
	return p
}

// RenderPanel writes heat-map images of the volume's three planes and, when
// provided, the phase mask and aberration mask into the directory at dir.
// This is the diagnostic view an operator checks after an acquisition.
// Constant (information-free) grids are skipped.
func RenderPanel(dir string, v *models.PSFVolume, mask, zerns *mat.Dense) error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	panels := []struct {
		name string
		grid plotter.GridXYZ
	}{
		{"panel_xy", planeGrid{v.Planes[models.PlaneXY], v.Res}},
		{"panel_xz", planeGrid{v.Planes[models.PlaneXZ], v.Res}},
		{"panel_yz", planeGrid{v.Planes[models.PlaneYZ], v.Res}},
	}
	if mask != nil {
		panels = append(panels, struct {
			name string
			grid plotter.GridXYZ
		}{"panel_phasemask", maskGrid{mask}})
	}
	if zerns != nil {
		panels = append(panels, struct {
			name string
			grid plotter.GridXYZ
		}{"panel_aberrations", maskGrid{zerns}})
	}

	for _, panel := range panels {
		if constantGrid(panel.grid) {
			continue
		}
		p := heatMap(panel.name, panel.grid)
		filename := filepath.Join(dir, panel.name+".png")
		if err := p.Save(4*vg.Inch, 4*vg.Inch, filename); err != nil {
			return fmt.Errorf("saving %s: %v", panel.name, err)
		}
	}
	return nil
}
