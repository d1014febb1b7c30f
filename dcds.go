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

// Package dcds is the declarative-to-executable engine's external
// surface (spec.md §6): registering a type as a runnable data
// structure, creating instances of it, and calling their public
// operations by name with runtime arity/type validation.
//
// Everything under internal/ is deliberately not exported: a DS
// author builds an *ir.TypeDef (attributes, sub-types, operation
// bodies) against the internal/ir types, either directly or through
// Builder, a thin helper that only assigns into the TypeDef's fields —
// there is no front-end DSL (spec.md §1's Non-goals).
package dcds

import (
	"fmt"

	"github.com/dcds-project/dcds/internal/ccinject"
	"github.com/dcds-project/dcds/internal/dcdserr"
	"github.com/dcds-project/dcds/internal/dcdsconfig"
	"github.com/dcds-project/dcds/internal/dlog"
	"github.com/dcds-project/dcds/internal/harness"
	"github.com/dcds-project/dcds/internal/index"
	"github.com/dcds-project/dcds/internal/interp"
	"github.com/dcds-project/dcds/internal/ir"
	"github.com/dcds-project/dcds/internal/optimize"
	"github.com/dcds-project/dcds/internal/record"
	"github.com/dcds-project/dcds/internal/registry"
	"github.com/dcds-project/dcds/internal/table"
	"github.com/dcds-project/dcds/internal/txn"
	"github.com/dcds-project/dcds/internal/value"
)

// Registered is a DS definition after build-time processing: the
// build-time optimizer (C12) has pruned it and the CC injector (C10)
// has rewritten every operation and sub-type method with explicit lock
// statements. It is namespace-bound at registration time — every
// instance created from it lives in that one namespace's tables.
type Registered struct {
	root *ir.TypeDef
	env  *harness.Env
}

// Register builds, optimizes, and CC-injects root's type graph inside
// the default namespace ("default"), using cfg's policy knobs
// (dcdsconfig.Default() suits most callers).
func Register(cfg dcdsconfig.Config, root *ir.TypeDef) (*Registered, error) {
	tmgr, tables := registry.Default().GetOrCreate(cfg.DefaultNamespace)
	return register(cfg, tmgr, tables, root)
}

// RegisterIn is Register against an explicit *registry.Namespaces and
// namespace name, for tests that want table isolation from one another.
func RegisterIn(cfg dcdsconfig.Config, namespaces *registry.Namespaces, namespace string, root *ir.TypeDef) (*Registered, error) {
	tmgr, tables := namespaces.GetOrCreate(namespace)
	return register(cfg, tmgr, tables, root)
}

func register(cfg dcdsconfig.Config, tmgr *txn.Manager, tables *registry.Tables, root *ir.TypeDef) (*Registered, error) {
	if root == nil {
		return nil, dcdserr.NewFatal("dcds: Register called with a nil root type")
	}

	// C12 first, before any table is created: pruneFunctions mutates
	// TypeDef.Functions in place, and a dropped sub-type method must
	// never end up reachable through a later-injected clone
	// (spec.md §4.10's ordering relative to §4.9's CC injection).
	report := optimize.Prune(root)
	dlog.Info("ds registered: optimizer report",
		"type", root.Name, "functions_dropped", report.FunctionsDropped,
		"attributes_kept", report.AttributesKept, "attributes_unused", report.AttributesUnused)

	types := optimize.CollectTypes(root)
	typesByTable := make(map[table.ID]*ir.TypeDef, len(types))
	for _, td := range types {
		t := td.Table(tables)
		typesByTable[t.ID()] = td
	}

	// C10 second: every TypeDef's own Functions map is replaced with
	// its CC-injected clones. ir.Stmt.Type pointers recorded by earlier
	// StmtCall nodes still point at the same *ir.TypeDef values, and
	// internal/interp reads a TypeDef's Functions map at call time, so
	// its static dispatch picks up the injected bodies
	// automatically once this loop returns.
	injector := ccinject.New()
	for _, td := range types {
		td.Functions = injector.InjectTypeDef(td)
	}
	if root.Constructor != nil {
		root.Constructor = injector.InjectOperation(root.Constructor)
	}

	env := &harness.Env{
		TxnManager: tmgr,
		Tables:     tables,
		Types:      typesByTable,
		Indexes:    index.NewRegistry(),
		MaxRetries: cfg.MaxRetries,
	}
	return &Registered{root: root, env: env}, nil
}

// CreateInstance allocates a fresh root-type record and runs the root
// TypeDef's constructor (if any) over it with args, returning a Handle
// for calling its public operations (spec.md §6: "createInstance()
// returns a handle by running the outer constructor"). Allocation and
// the constructor run in one transaction: if the constructor returns
// an error the record never becomes visible.
func (r *Registered) CreateInstance(args ...value.Value) (*Handle, error) {
	tbl := r.root.Table(r.env.Tables)
	tx := r.env.TxnManager.Begin(false)
	ref := tbl.InsertRecord(tx, nil)
	for i, a := range r.root.Attributes {
		// see internal/interp's StmtCreate case for why this compares
		// against a.ValueKind rather than value.Void.
		if a.Kind == ir.AttrPrimitive && a.Default.Kind() == a.ValueKind {
			if err := tbl.UpdateAttribute(tx, ref, a.Default, i); err != nil {
				tx.Abort()
				return nil, err
			}
		}
	}
	if r.root.Constructor != nil {
		if len(args) != len(r.root.Constructor.Params) {
			tx.Abort()
			return nil, dcdserr.NewFatalf("dcds: constructor of %s expects %d args, got %d", r.root.Name, len(r.root.Constructor.Params), len(args))
		}
		ctx := interp.NewContext(tx, r.env.Tables, r.env.Types, r.env.Indexes, ref, tbl)
		if _, err := interp.Run(r.root.Constructor, ctx, args); err != nil {
			tx.Abort()
			return nil, err
		}
	}
	tx.Commit()
	return &Handle{reg: r, ref: ref, tbl: tbl}, nil
}

// Handle is a live reference to one instance of a Registered DS: the
// record its attributes live in, plus the environment needed to run
// its operations (spec.md §6's "handle").
type Handle struct {
	reg *Registered
	ref record.Ref
	tbl *table.Table
}

// Ref is the handle's underlying packed record reference, exposed for
// callers building their own operation arguments or test assertions —
// it is not interpreted by anything outside this package.
func (h *Handle) Ref() uint64 { return h.ref.Uint64() }

// Call runs the public operation named name on h's instance, validating
// args against its declared parameter kinds first (spec.md §6: "calling
// a method ... dispatches by name with runtime type checking of
// arguments"). It retries internally on a lock conflict or a duplicate
// indexed-list key per internal/harness's policy, surfacing only a
// non-retryable error or dcdserr.ErrMaxRetriesExceeded.
func (h *Handle) Call(name string, args ...value.Value) (value.Value, error) {
	fn, ok := h.reg.root.Functions[name]
	if !ok {
		return value.Value{}, dcdserr.ErrUnknownName
	}
	if len(args) != len(fn.Params) {
		return value.Value{}, fmt.Errorf("dcds: %s expects %d args, got %d: %w", name, len(fn.Params), len(args), dcdserr.ErrTypeMismatch)
	}
	for i, p := range fn.Params {
		if args[i].Kind() != p.Kind {
			return value.Value{}, fmt.Errorf("dcds: %s arg %d: expected %s, got %s: %w", name, i, p.Kind, args[i].Kind(), dcdserr.ErrTypeMismatch)
		}
	}
	return h.reg.env.Run(fn, h.ref, h.tbl, false, args)
}

// String renders h in the "Table#slot" form used in logs and test
// failure messages.
func (h *Handle) String() string {
	return fmt.Sprintf("%s#%d", h.tbl.Name(), h.ref.Slot())
}

// Builder assembles an *ir.TypeDef field by field. It is not a
// front-end DSL (spec.md §1's Non-goals still exclude that): every
// piece it hangs onto the TypeDef — an Attribute, a Function's body —
// is still built with internal/ir's own constructors. Builder only
// spares callers the repeated "declare a TypeDef, then assign into its
// exported fields" boilerplate of assembling one by hand.
type Builder struct {
	td *ir.TypeDef
}

// NewType starts building a TypeDef named name.
func NewType(name string) *Builder {
	return &Builder{td: &ir.TypeDef{Name: name, Functions: make(map[string]*ir.Function)}}
}

// Attr appends one attribute to the TypeDef under construction.
func (b *Builder) Attr(a ir.Attribute) *Builder {
	b.td.Attributes = append(b.td.Attributes, a)
	return b
}

// Op hangs fn off the TypeDef under construction, keyed by fn.Name —
// a public operation when td is a DS's root, a sub-type method
// otherwise (spec.md §4.7).
func (b *Builder) Op(fn *ir.Function) *Builder {
	b.td.Functions[fn.Name] = fn
	return b
}

// WithConstructor sets the TypeDef's Constructor (meaningful only on a
// DS's root TypeDef; see ir.TypeDef.Constructor's doc comment).
func (b *Builder) WithConstructor(fn *ir.Function) *Builder {
	b.td.Constructor = fn
	return b
}

// Build returns the assembled TypeDef, ready to pass to Register.
func (b *Builder) Build() *ir.TypeDef {
	return b.td
}
