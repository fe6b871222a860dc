package indicator

import (
	"testing"

	"pnf-systemv1/internal/model"
)

func TestPriceObjective_BullishVerticalCount(t *testing.T) {
	// Six boxes of size 1 topping out at 105: target 105 + 6*1 = 111.
	// A lone first column still produces an objective.
	cols := []*model.Column{xcol(100, 101, 102, 103, 104, 105)}
	p := NewPriceObjective()
	p.Calculate(cols)

	objs := p.Objectives()
	if len(objs) != 1 {
		t.Fatalf("len(Objectives) = %d, want 1", len(objs))
	}
	o := objs[0]
	if o.Target != 111 || o.ColumnIndex != 0 || o.Boxes != 6 || !o.Bullish {
		t.Errorf("objective = %+v, want bullish 111 from column 0 with 6 boxes", o)
	}
}

func TestPriceObjective_BearishVerticalCount(t *testing.T) {
	cols := []*model.Column{ocol(105, 104, 103, 102)}
	p := NewPriceObjective()
	p.Calculate(cols)

	objs := p.Objectives()
	if len(objs) != 1 {
		t.Fatalf("len(Objectives) = %d, want 1", len(objs))
	}
	o := objs[0]
	// 102 - 4*1 = 98.
	if o.Target != 98 || o.Boxes != 4 || o.Bullish {
		t.Errorf("objective = %+v, want bearish 98 with 4 boxes", o)
	}
}

func TestPriceObjective_SingleBoxUsesColumnBoxSize(t *testing.T) {
	c := model.NewColumn(model.ColumnX, 2.5)
	c.Add(model.Box{Price: 100, Direction: model.DirX})

	p := NewPriceObjective()
	p.Calculate([]*model.Column{c})

	objs := p.Objectives()
	if len(objs) != 1 {
		t.Fatalf("len(Objectives) = %d, want 1", len(objs))
	}
	// One box, step from the recorded box size: 100 + 1*2.5.
	if o := objs[0]; o.Target != 102.5 || o.Boxes != 1 {
		t.Errorf("objective = %+v, want target 102.5 from 1 box", o)
	}
}

func TestPriceObjective_StepFromLastTwoBoxes(t *testing.T) {
	// Irregular spacing: the step comes from the last pair (103-101=2),
	// not the first.
	c := model.NewColumn(model.ColumnX, 1.0)
	for _, price := range []float64{100, 101, 103} {
		c.Add(model.Box{Price: price, Direction: model.DirX})
	}

	p := NewPriceObjective()
	p.Calculate([]*model.Column{c})

	if o := p.Latest(); o.Target != 103+3*2 || o.Boxes != 3 {
		t.Errorf("objective = %+v, want target 109 from 3 boxes of step 2", o)
	}
}

func TestPriceObjective_MixedColumnsSkipped(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101),
		col(model.ColumnMixed, 102, 99),
		ocol(100, 99),
	}
	p := NewPriceObjective()
	p.Calculate(cols)

	objs := p.Objectives()
	if len(objs) != 2 {
		t.Fatalf("len(Objectives) = %d, want 2 (mixed column yields none)", len(objs))
	}
	if objs[0].ColumnIndex != 0 || objs[1].ColumnIndex != 2 {
		t.Errorf("objective columns = %d/%d, want 0/2", objs[0].ColumnIndex, objs[1].ColumnIndex)
	}
	if !objs[0].Bullish || objs[1].Bullish {
		t.Errorf("objective sides = %v/%v, want bullish/bearish", objs[0].Bullish, objs[1].Bullish)
	}
}

func TestPriceObjective_LatestAndEmpty(t *testing.T) {
	p := NewPriceObjective()
	o := p.Latest()
	if o.ColumnIndex != -1 || o.Target != 0 || o.Boxes != 0 || !o.Bullish {
		t.Errorf("Latest() on empty = %+v, want zero bullish record with column -1", o)
	}

	p.Calculate([]*model.Column{xcol(100, 101), ocol(100, 99)})
	if o := p.Latest(); o.ColumnIndex != 1 || o.Bullish {
		t.Errorf("Latest() = %+v, want the bearish column 1 target", o)
	}
}

func TestPriceObjective_OutOfRangeAtIsIgnored(t *testing.T) {
	cols := []*model.Column{xcol(100, 101)}
	p := NewPriceObjective()
	p.CalculateAt(cols, -1)
	p.CalculateAt(cols, 5)

	if len(p.Objectives()) != 0 {
		t.Errorf("Objectives() = %+v, want empty for out-of-range indices", p.Objectives())
	}
}

func TestPriceObjective_RecomputeClears(t *testing.T) {
	cols := []*model.Column{xcol(100, 101), ocol(100, 99)}
	p := NewPriceObjective()
	p.Calculate(cols)
	p.Calculate(cols)

	if got := len(p.Objectives()); got != 2 {
		t.Errorf("len(Objectives) after recompute = %d, want 2", got)
	}
}
