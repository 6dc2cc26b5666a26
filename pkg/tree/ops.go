// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package tree

import "fmt"

// BinaryOp identifies the arithmetic or logical operator of a Binop node.
type BinaryOp uint8

const (
	// PLUS is integer addition.
	PLUS BinaryOp = iota
	// MINUS is integer subtraction.
	MINUS
	// MUL is integer multiplication.
	MUL
	// DIV is (signed) integer division.
	DIV
	// AND is bitwise conjunction.
	AND
	// OR is bitwise disjunction.
	OR
	// LSHIFT is a logical left shift.
	LSHIFT
	// RSHIFT is a logical right shift.
	RSHIFT
	// ARSHIFT is an arithmetic right shift.
	ARSHIFT
	// XOR is bitwise exclusive-or.
	XOR
)

var binaryOpNames = [...]string{"PLUS", "MINUS", "MUL", "DIV", "AND", "OR", "LSHIFT", "RSHIFT", "ARSHIFT", "XOR"}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	//
	return fmt.Sprintf("BINOP#%d", uint8(op))
}

// ParseBinaryOp returns the binary operator with the given name.
func ParseBinaryOp(name string) (BinaryOp, bool) {
	for i, n := range binaryOpNames {
		if n == name {
			return BinaryOp(i), true
		}
	}
	//
	return 0, false
}

// RelOp identifies the comparison performed by a CJump node.
type RelOp uint8

const (
	// EQ is equality.
	EQ RelOp = iota
	// NE is disequality.
	NE
	// LT is signed less-than.
	LT
	// GT is signed greater-than.
	GT
	// LE is signed less-than-or-equal.
	LE
	// GE is signed greater-than-or-equal.
	GE
	// ULT is unsigned less-than.
	ULT
	// ULE is unsigned less-than-or-equal.
	ULE
	// UGT is unsigned greater-than.
	UGT
	// UGE is unsigned greater-than-or-equal.
	UGE
)

// RelOps lists every relational operator.
var RelOps = []RelOp{EQ, NE, LT, GT, LE, GE, ULT, ULE, UGT, UGE}

var relOpNames = [...]string{"EQ", "NE", "LT", "GT", "LE", "GE", "ULT", "ULE", "UGT", "UGE"}

func (op RelOp) String() string {
	if int(op) < len(relOpNames) {
		return relOpNames[op]
	}
	//
	return fmt.Sprintf("RELOP#%d", uint8(op))
}

// ParseRelOp returns the relational operator with the given name.
func ParseRelOp(name string) (RelOp, bool) {
	for i, n := range relOpNames {
		if n == name {
			return RelOp(i), true
		}
	}
	//
	return 0, false
}

// NotRel returns the relational operator which holds exactly when the given
// one does not.  This is an involution, meaning NotRel(NotRel(op)) == op.
func NotRel(op RelOp) RelOp {
	switch op {
	case EQ:
		return NE
	case NE:
		return EQ
	case LT:
		return GE
	case GE:
		return LT
	case GT:
		return LE
	case LE:
		return GT
	case ULT:
		return UGE
	case UGE:
		return ULT
	case UGT:
		return ULE
	case ULE:
		return UGT
	}
	//
	panic(fmt.Sprintf("bad relational operator (%d)", uint8(op)))
}

// EvalRel evaluates a relational operator over two machine words.
func EvalRel(op RelOp, l, r int32) bool {
	switch op {
	case EQ:
		return l == r
	case NE:
		return l != r
	case LT:
		return l < r
	case GT:
		return l > r
	case LE:
		return l <= r
	case GE:
		return l >= r
	case ULT:
		return uint32(l) < uint32(r)
	case ULE:
		return uint32(l) <= uint32(r)
	case UGT:
		return uint32(l) > uint32(r)
	case UGE:
		return uint32(l) >= uint32(r)
	}
	//
	panic(fmt.Sprintf("bad relational operator (%d)", uint8(op)))
}

// EvalBinary evaluates a binary operator over two machine words.  Division by
// zero yields zero, mirroring the (undefined) behaviour of the hardware.
func EvalBinary(op BinaryOp, l, r int32) int32 {
	switch op {
	case PLUS:
		return l + r
	case MINUS:
		return l - r
	case MUL:
		return l * r
	case DIV:
		if r == 0 {
			return 0
		}
		//
		return l / r
	case AND:
		return l & r
	case OR:
		return l | r
	case LSHIFT:
		return l << (uint32(r) & 31)
	case RSHIFT:
		return int32(uint32(l) >> (uint32(r) & 31))
	case ARSHIFT:
		return l >> (uint32(r) & 31)
	case XOR:
		return l ^ r
	}
	//
	panic(fmt.Sprintf("bad binary operator (%d)", uint8(op)))
}
