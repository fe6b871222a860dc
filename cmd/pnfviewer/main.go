// cmd/pnfviewer renders a point-and-figure chart from an OHLC CSV file as
// an interactive terminal view. Columns scroll horizontally, price rows
// vertically, and the indicator summary is available as an overlay.
//
// Usage:
//
//	go run ./cmd/pnfviewer --csv=data/BTCUSDT.csv --box-mode=percentage --box-param=1
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/indicator"
	"pnf-systemv1/internal/ingest"
	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/pattern"
)

const (
	cellWidth  = 3
	priceWidth = 12 // "%10.4f |" including the separator
	chromeRows = 3  // two header lines plus the footer
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleX      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleO      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleMarker = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stylePrice  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	styleBuy    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleSell   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleHelp   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

func main() {
	log.SetFlags(0)

	csvPath := flag.String("csv", "", "Path to OHLC CSV file (required)")
	symbol := flag.String("symbol", "", "Symbol label (default: CSV filename)")
	construction := flag.String("construction", "close", "Chart construction: close or high_low")
	boxMode := flag.String("box-mode", "default", "Box sizing: fixed, default, points or percentage")
	boxParam := flag.Float64("box-param", 1.0, "Box parameter for the chosen sizing mode")
	reversal := flag.Int("reversal", 3, "Boxes needed to reverse a column")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	sym := strings.ToUpper(*symbol)
	if sym == "" {
		base := filepath.Base(*csvPath)
		sym = strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	cm, err := chart.ParseConstructionMode(*construction)
	if err != nil {
		log.Fatalf("[pnfviewer] %v", err)
	}
	bm, err := chart.ParseBoxSizeMode(*boxMode)
	if err != nil {
		log.Fatalf("[pnfviewer] %v", err)
	}
	c, err := chart.New(cm, bm, *boxParam, *reversal)
	if err != nil {
		log.Fatalf("[pnfviewer] %v", err)
	}

	loader := ingest.NewCSVLoader(*csvPath, sym)
	observations, err := loader.Load()
	if err != nil {
		log.Fatalf("[pnfviewer] load %s: %v", *csvPath, err)
	}
	if len(observations) == 0 {
		log.Fatalf("[pnfviewer] %s: no parsable rows (skipped %d)", *csvPath, loader.Skipped())
	}
	for _, o := range observations {
		c.AddObservation(o.High, o.Low, o.Close, o.Time)
	}

	suite := indicator.NewSuite()
	suite.Calculate(c.Columns())

	m := newViewModel(sym, c, suite, len(observations))
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("[pnfviewer] %v", err)
	}
}

// viewModel is the bubbletea model: a finished chart plus scroll state.
// The chart is immutable after load, so Update only moves the viewport.
type viewModel struct {
	symbol       string
	chart        *chart.Chart
	suite        *indicator.Suite
	observations int

	cols   []*model.Column
	prices []float64 // grid rows, highest first

	rowOff, colOff int
	width, height  int
	sized          bool
	showSummary    bool
}

func newViewModel(symbol string, c *chart.Chart, suite *indicator.Suite, observations int) viewModel {
	return viewModel{
		symbol:       symbol,
		chart:        c,
		suite:        suite,
		observations: observations,
		cols:         c.Columns(),
		prices:       c.AllPrices(),
	}
}

func (m viewModel) Init() tea.Cmd { return nil }

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.sized {
			m.sized = true
			m.jumpToLatest()
		}
		m.clampOffsets()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.showSummary = !m.showSummary
		case "up", "k":
			m.rowOff--
		case "down", "j":
			m.rowOff++
		case "left", "h":
			m.colOff--
		case "right", "l":
			m.colOff++
		case "pgup":
			m.rowOff -= m.visibleRows()
		case "pgdown":
			m.rowOff += m.visibleRows()
		case "g", "home":
			m.rowOff, m.colOff = 0, 0
		case "G", "end":
			m.jumpToLatest()
		}
		m.clampOffsets()
	}
	return m, nil
}

func (m viewModel) View() string {
	if !m.sized {
		return "loading..."
	}
	if m.showSummary {
		return m.summaryView()
	}

	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString(m.gridView())
	sb.WriteString(m.footerView())
	return sb.String()
}

func (m *viewModel) visibleRows() int {
	n := m.height - chromeRows
	if n < 1 {
		n = 1
	}
	return n
}

func (m *viewModel) visibleCols() int {
	n := (m.width - priceWidth) / cellWidth
	if n < 1 {
		n = 1
	}
	return n
}

// jumpToLatest scrolls to the newest column and centers its top box.
func (m *viewModel) jumpToLatest() {
	m.colOff = len(m.cols) - m.visibleCols()
	if last := m.chart.LastColumn(); last != nil {
		if idx := m.rowFor(last.Highest()); idx >= 0 {
			m.rowOff = idx - m.visibleRows()/2
		}
	}
	m.clampOffsets()
}

func (m *viewModel) clampOffsets() {
	maxRow := len(m.prices) - m.visibleRows()
	maxCol := len(m.cols) - m.visibleCols()
	if m.rowOff > maxRow {
		m.rowOff = maxRow
	}
	if m.colOff > maxCol {
		m.colOff = maxCol
	}
	if m.rowOff < 0 {
		m.rowOff = 0
	}
	if m.colOff < 0 {
		m.colOff = 0
	}
}

// rowFor returns the grid row plotted at price, or -1.
func (m *viewModel) rowFor(price float64) int {
	for i, p := range m.prices {
		if math.Abs(p-price) < 1e-5 {
			return i
		}
	}
	return -1
}

func (m viewModel) headerView() string {
	title := fmt.Sprintf("%s  %s/%s  box %.4f  reversal %d",
		m.symbol,
		strings.ToLower(string(m.chart.Construction())),
		strings.ToLower(string(m.chart.BoxMode())),
		m.chart.BoxSize(),
		m.chart.ReversalCount(),
	)

	signal := "signal NONE"
	switch m.suite.Signals.Current() {
	case indicator.SideBuy:
		signal = styleBuy.Render("signal BUY")
	case indicator.SideSell:
		signal = styleSell.Render("signal SELL")
	}
	pat := "no pattern"
	if latest := m.suite.Patterns.Latest(); latest.Type != pattern.None {
		pat = latest.Type.Label()
	}
	status := fmt.Sprintf("columns %d (X %d / O %d)  %s  %s",
		m.chart.ColumnCount(), m.chart.XColumnCount(), m.chart.OColumnCount(), signal, pat)

	return styleHeader.Render(title) + "\n" + status + "\n"
}

func (m viewModel) gridView() string {
	rows := m.visibleRows()
	if len(m.cols) == 0 || len(m.prices) == 0 {
		empty := fmt.Sprintf("no columns plotted from %d observations", m.observations)
		return empty + strings.Repeat("\n", rows)
	}

	lastRow := m.rowOff + rows
	if lastRow > len(m.prices) {
		lastRow = len(m.prices)
	}
	lastCol := m.colOff + m.visibleCols()
	if lastCol > len(m.cols) {
		lastCol = len(m.cols)
	}

	var sb strings.Builder
	for r := m.rowOff; r < lastRow; r++ {
		price := m.prices[r]
		sb.WriteString(stylePrice.Render(fmt.Sprintf("%10.4f", price)))
		sb.WriteString(" │")
		for c := m.colOff; c < lastCol; c++ {
			sb.WriteString(m.cellView(m.cols[c], price))
		}
		sb.WriteString("\n")
	}
	// Pad short grids so the footer stays pinned to the bottom.
	for r := lastRow - m.rowOff; r < rows; r++ {
		sb.WriteString("\n")
	}
	return sb.String()
}

// cellView renders one fixed-width grid cell: the box's month marker when
// present, otherwise its X/O symbol, otherwise a dim placeholder.
func (m viewModel) cellView(col *model.Column, price float64) string {
	b := boxNear(col, price)
	if b == nil {
		return styleEmpty.Render(fmt.Sprintf("%*s", cellWidth, "."))
	}
	if b.Marker != "" {
		return styleMarker.Render(fmt.Sprintf("%*s", cellWidth, b.Marker))
	}
	s := fmt.Sprintf("%*s", cellWidth, string(b.Direction))
	if b.Direction == model.DirX {
		return styleX.Render(s)
	}
	return styleO.Render(s)
}

// boxNear finds the column's box at price, tolerating float drift.
func boxNear(col *model.Column, price float64) *model.Box {
	for i := range col.Boxes {
		if math.Abs(col.Boxes[i].Price-price) < 1e-5 {
			return &col.Boxes[i]
		}
	}
	return nil
}

func (m viewModel) footerView() string {
	pos := fmt.Sprintf("rows %d-%d/%d  cols %d-%d/%d",
		m.rowOff+1, minInt(m.rowOff+m.visibleRows(), len(m.prices)), len(m.prices),
		m.colOff+1, minInt(m.colOff+m.visibleCols(), len(m.cols)), len(m.cols))
	help := "arrows scroll · g/G first/latest · s summary · q quit"
	return styleHelp.Render(pos + "  " + help)
}

func (m viewModel) summaryView() string {
	body := m.suite.Summary()
	body += fmt.Sprintf("\nOBSERVATIONS LOADED: %d\n", m.observations)
	box := styleBox.Render(strings.TrimRight(body, "\n"))
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, box) +
			"\n" + styleHelp.Render("s chart · q quit")
	}
	return box
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
