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

// Package ccinject implements C10, the static pass that walks each
// operation's frozen statement tree once (at DS-registration time, not
// per call) and rewrites it with explicit ir.StmtLock nodes (spec.md
// §4.9). The interpreter (internal/interp) never locks on its own; it
// only executes the Lock nodes this pass leaves behind.
//
// This implementation locks at whole-record granularity (every
// ir.Stmt.Ref/ir.Expr.Ref key names a record, never a single
// attribute): internal/lock's RecordLock has no sub-record
// granularity, so the "attribute_or_whole_record" parameter spec.md's
// Lock primitive describes collapses to "whole record" here (see
// DESIGN.md).
package ccinject

import "github.com/dcds-project/dcds/internal/ir"

// scope is the per-function-body analysis state spec.md §4.9 calls
// locks_in_scope / traits_in_scope. Sequential statements in the same
// block share one scope (a lock one statement takes is still held,
// strict two-phase, when a later statement in that same block runs).
// Branches and loop bodies do not: injectStmt recurses into a StmtIf's
// Then/Else, a StmtWhile's Body, and a StmtForEachIndex's Body on a
// clone() of the scope, per spec.md §4.9 step 6 ("recurse with a copy
// of locks_in_scope"). A conditionally-taken branch may hold a record
// only shared (or not at all) where a sibling branch holds it
// exclusive, and a while/for-each body may run zero times — crediting
// a lock recorded inside one of those to statements after the
// conditional/loop would under-lock them.
type scope struct {
	locks       map[string]bool // key -> exclusive?
	nascentVars map[string]bool
	recvNascent bool // true if the function's own current record was passed in nascent
}

func newScope(recvNascent bool) *scope {
	return &scope{locks: make(map[string]bool), nascentVars: make(map[string]bool), recvNascent: recvNascent}
}

// clone returns an independent copy of sc: mutations inside a branch or
// loop body that injectStmt recurses into with the clone never become
// visible to sc itself or to a sibling branch injected from the same
// starting point.
func (sc *scope) clone() *scope {
	locks := make(map[string]bool, len(sc.locks))
	for k, v := range sc.locks {
		locks[k] = v
	}
	nascentVars := make(map[string]bool, len(sc.nascentVars))
	for k, v := range sc.nascentVars {
		nascentVars[k] = v
	}
	return &scope{locks: locks, nascentVars: nascentVars, recvNascent: sc.recvNascent}
}

// refKey names the record an Expr's Ref (or a Stmt's Ref) points at,
// for scope bookkeeping. Only the two statically-resolvable shapes —
// "the current record" and "a local variable" — are tracked; any
// other expression shape (e.g. a freshly-evaluated chain) always gets
// a fresh lock, conservatively.
func refKey(e *ir.Expr) string {
	if e == nil {
		return "$current"
	}
	if e.Kind == ir.ExprVar {
		return "var:" + e.Name
	}
	return ""
}

func (sc *scope) isNascent(key string) bool {
	if key == "$current" {
		return sc.recvNascent
	}
	if key == "" {
		return false
	}
	if name, ok := cutPrefix(key, "var:"); ok {
		return sc.nascentVars[name]
	}
	return false
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// need reports whether key still needs a lock of the given strength,
// and if so upgrades the scope's record of that key's lock strength.
func (sc *scope) need(key string, exclusive bool) bool {
	if key == "" {
		return true
	}
	if sc.isNascent(key) {
		return false
	}
	cur, held := sc.locks[key]
	if held && (cur || !exclusive) {
		return false // already hold a lock at least as strong
	}
	sc.locks[key] = exclusive
	return true
}

type lockReq struct {
	key       string
	exclusive bool
}

func collectExprReads(e *ir.Expr, out []lockReq) []lockReq {
	if e == nil {
		return out
	}
	switch e.Kind {
	case ir.ExprAttr:
		out = append(out, lockReq{key: refKey(e.Ref), exclusive: false})
		out = collectExprReads(e.Ref, out)
	case ir.ExprIndexFind:
		out = append(out, lockReq{key: refKey(e.Ref), exclusive: false})
		out = collectExprReads(e.Ref, out)
		out = collectExprReads(e.Key, out)
	case ir.ExprBinary:
		out = collectExprReads(e.L, out)
		out = collectExprReads(e.R, out)
	case ir.ExprUnary:
		out = collectExprReads(e.L, out)
	}
	return out
}

// Injector caches cloned-and-injected functions by identity, so a
// function reached twice during one pass (recursion, or two operations
// sharing a helper) returns the same clone — the stability repeated
// build-time optimizer passes rely on (spec.md §4.9's note on clone
// identity surviving repeated runs).
//
// spec.md §4.9 step 4 additionally asks for *context-sensitive*
// cloning: a callee cloned separately per call-site, so a call on a
// nascent receiver can drop even the callee's own self-locks. This
// implementation narrows that: internal/interp dispatches a
// StmtCall by looking up the callee's TypeDef.Functions[name] at
// run time (spec.md's "sub-type method" has exactly one body, shared
// by every instance of that type), so there is only ever one
// interpretable body per named function — a per-call-site variant
// would never be reached. Every TypeDef method is therefore injected
// once, conservatively assuming its own receiver is not nascent.
// What *is* context-sensitive, and implemented, is the call site
// itself: injectStmt's ir.StmtCall case still skips locking the
// receiver before the call when the caller's scope already knows it
// nascent, exactly as step 4 describes for the caller's side. The
// residual cost of the narrowing is purely an occasionally-redundant
// lock attempt inside the callee on a record the caller could have
// proven already safe — never a correctness gap, since
// internal/lock.RecordLock's reentrant try-lock makes that extra
// attempt succeed immediately.
type Injector struct {
	cache map[*ir.Function]*ir.Function
}

func New() *Injector {
	return &Injector{cache: make(map[*ir.Function]*ir.Function)}
}

// InjectOperation rewrites a top-level public operation's body. Its
// receiver — the DS instance the operation was called on — always
// already exists, so it is never nascent.
func (inj *Injector) InjectOperation(fn *ir.Function) *ir.Function {
	return inj.inject(fn)
}

// InjectTypeDef rewrites every function hung off td (its sub-type
// methods), returning a new map keyed by name. Callers replace
// td.Functions with the result before any operation referencing td is
// run.
func (inj *Injector) InjectTypeDef(td *ir.TypeDef) map[string]*ir.Function {
	out := make(map[string]*ir.Function, len(td.Functions))
	for name, fn := range td.Functions {
		out[name] = inj.inject(fn)
	}
	return out
}

func (inj *Injector) inject(fn *ir.Function) *ir.Function {
	if cached, ok := inj.cache[fn]; ok {
		return cached
	}
	clone := &ir.Function{Name: fn.Name, Params: fn.Params, RetKind: fn.RetKind}
	inj.cache[fn] = clone // pre-insert: a recursive function sees itself for free
	sc := newScope(false)
	clone.Body = inj.injectBody(fn.Body, sc)
	return clone
}

func (inj *Injector) injectBody(body []ir.Stmt, sc *scope) []ir.Stmt {
	out := make([]ir.Stmt, 0, len(body))
	for i := range body {
		out = append(out, inj.injectStmt(body[i], sc))
	}
	return out
}

// injectStmt recursively injects a single statement's children, then
// computes the locks this statement itself requires and wraps it in
// nested ir.StmtLock nodes for whichever of those the scope doesn't
// already show as held.
func (inj *Injector) injectStmt(s ir.Stmt, sc *scope) ir.Stmt {
	var reqs []lockReq

	switch s.Kind {
	case ir.StmtSetField:
		reqs = collectExprReads(s.Src, reqs)
		reqs = collectExprReads(s.Ref, reqs)
		reqs = append(reqs, lockReq{key: refKey(s.Ref), exclusive: true})

	case ir.StmtSetVar:
		reqs = collectExprReads(s.Src, reqs)

	case ir.StmtCreate:
		// no lock: brand new record, unreachable by any other transaction.
		sc.nascentVars[s.Dest] = true

	case ir.StmtCall:
		for _, a := range s.Args {
			reqs = collectExprReads(a, reqs)
		}
		reqs = collectExprReads(s.Ref, reqs)
		recvKey := refKey(s.Ref)
		recvNascent := sc.isNascent(recvKey)
		if !recvNascent {
			reqs = append(reqs, lockReq{key: recvKey, exclusive: true})
		}
		// the callee's body is injected separately, by InjectTypeDef.

	case ir.StmtIf:
		reqs = collectExprReads(s.Cond, reqs)
		// Each branch sees its own copy of the scope: a lock taken inside
		// Then must not be credited to Else (they are mutually exclusive
		// at runtime) or to any statement after the StmtIf (only one of
		// the two branches is guaranteed to have run).
		s.Then = inj.injectBody(s.Then, sc.clone())
		s.Else = inj.injectBody(s.Else, sc.clone())

	case ir.StmtWhile:
		reqs = collectExprReads(s.Cond, reqs)
		// The body may run zero times, so a lock it takes cannot be
		// assumed held by statements after the loop.
		s.Body = inj.injectBody(s.Body, sc.clone())

	case ir.StmtForEachIndex:
		reqs = append(reqs, lockReq{key: refKey(s.Ref), exclusive: false})
		// Same reasoning as StmtWhile: zero or more iterations, each over
		// a different element record, so locks taken inside the body stay
		// local to it.
		s.Body = inj.injectBody(s.Body, sc.clone())

	case ir.StmtReturn:
		reqs = collectExprReads(s.Src, reqs)

	case ir.StmtLock:
		// already explicit (hand-built test fixture, or a prior
		// injection pass's output fed back in): record it and recurse,
		// emitting no further wrapping for this node itself.
		key := refKey(s.Ref)
		if key != "" {
			sc.locks[key] = s.Exclusive
		}
		s.Body = inj.injectBody(s.Body, sc)
		return s

	case ir.StmtIndexInsert:
		reqs = collectExprReads(s.Key, reqs)
		reqs = collectExprReads(s.Ref2, reqs)
		reqs = append(reqs, lockReq{key: refKey(s.Ref), exclusive: true})

	case ir.StmtIndexRemove:
		reqs = collectExprReads(s.Key, reqs)
		reqs = append(reqs, lockReq{key: refKey(s.Ref), exclusive: true})

	case ir.StmtDelete:
		reqs = append(reqs, lockReq{key: refKey(s.Ref), exclusive: true})
	}

	return wrapWithLocks(s, reqs, sc)
}

func wrapWithLocks(s ir.Stmt, reqs []lockReq, sc *scope) ir.Stmt {
	// Merge requests for the same trackable key ("$current" or a named
	// local) to the strongest mode requested: a statement that both
	// reads and writes the same record needs only one exclusive lock,
	// not a shared one and then a separate exclusive one. Untracked
	// ("") keys never merge — each occurrence gets its own lock node,
	// since we cannot tell whether two "" requests name the same record.
	exclusiveOf := make(map[string]bool)
	for _, r := range reqs {
		if r.key != "" && r.exclusive {
			exclusiveOf[r.key] = true
		}
	}
	var needed []lockReq
	emitted := make(map[string]bool)
	for _, r := range reqs {
		excl := r.exclusive
		if r.key != "" {
			if emitted[r.key] {
				continue
			}
			emitted[r.key] = true
			excl = exclusiveOf[r.key]
		}
		if sc.need(r.key, excl) {
			needed = append(needed, lockReq{key: r.key, exclusive: excl})
		}
	}
	for i := len(needed) - 1; i >= 0; i-- {
		r := needed[i]
		var ref *ir.Expr
		if r.key != "$current" {
			if name, ok := cutPrefix(r.key, "var:"); ok {
				ref = ir.Var(name)
			}
		}
		s = ir.Lock(ref, r.exclusive, []ir.Stmt{s})
	}
	return s
}
