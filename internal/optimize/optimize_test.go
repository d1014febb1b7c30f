// Copyright 2024 The DCDS Authors
// This file is part of DCDS.
//
// DCDS is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DCDS is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with DCDS. If not, see <http://www.gnu.org/licenses/>.

package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/value"
)

func buildRootWithHelperAndDeadMethod() (*ir.TypeDef, *ir.TypeDef) {
	sub := &ir.TypeDef{
		Name: "Sub",
		Attributes: []ir.Attribute{
			{Name: "used", Kind: ir.AttrPrimitive, ValueKind: value.Int64},
			{Name: "unused", Kind: ir.AttrPrimitive, ValueKind: value.Int64},
		},
	}
	sub.Functions = map[string]*ir.Function{
		"helper": {
			Name: "helper", RetKind: value.Void,
			Body: []ir.Stmt{ir.SetField(nil, "used", ir.ConstI64(1))},
		},
		"dead": {
			Name: "dead", RetKind: value.Void,
			Body: []ir.Stmt{ir.SetField(nil, "used", ir.ConstI64(2))},
		},
	}

	root := &ir.TypeDef{
		Name: "Root",
		Attributes: []ir.Attribute{
			{Name: "child", Kind: ir.AttrSubType, ElemType: sub},
		},
	}
	root.Functions = map[string]*ir.Function{
		"run": {
			Name: "run", RetKind: value.Void,
			Body: []ir.Stmt{
				ir.Call(ir.Attr("child"), sub, "helper", ""),
			},
		},
	}
	return root, sub
}

func TestPruneDropsUnreachableSubTypeMethod(t *testing.T) {
	root, sub := buildRootWithHelperAndDeadMethod()
	report := Prune(root)

	_, helperKept := sub.Functions["helper"]
	_, deadKept := sub.Functions["dead"]
	require.True(t, helperKept)
	require.False(t, deadKept)
	require.Equal(t, 1, report.FunctionsDropped)
}

func TestPruneNeverDropsRootOperations(t *testing.T) {
	root, _ := buildRootWithHelperAndDeadMethod()
	before := len(root.Functions)
	Prune(root)
	require.Equal(t, before, len(root.Functions))
}

func TestDiagnoseAttributesFindsUsedAndUnused(t *testing.T) {
	root, sub := buildRootWithHelperAndDeadMethod()
	report := Prune(root)

	// sub.used is written by helper (reachable); sub.unused is touched
	// by nothing any reachable function keeps.
	require.Equal(t, 1, report.AttributesUnused) // sub.unused
	require.GreaterOrEqual(t, report.AttributesKept, 1)

	// row layout is never altered by the diagnostic pass: both
	// attributes still exist on sub after Prune.
	require.Len(t, sub.Attributes, 2)
}

func TestCollectTypesIsStableAndDeduplicates(t *testing.T) {
	root, sub := buildRootWithHelperAndDeadMethod()
	// a second attribute referencing the same sub-type must not produce
	// a duplicate entry.
	root.Attributes = append(root.Attributes, ir.Attribute{Name: "child2", Kind: ir.AttrSubType, ElemType: sub})

	types := CollectTypes(root)
	require.Equal(t, []*ir.TypeDef{root, sub}, types)
}
