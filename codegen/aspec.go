package codegen

import "github.com/cinder-lang/cinder/ast"

// Aspec field widths (spec.md §3): required(5) | optional(5) | rest(1)
// | post(5) | keyword(5) | keyword-dict(1) | block(1) = 23 of the
// 25-bit Ax payload; the top 2 bits are reserved/zero.
const (
	aspecReqBits  = 5
	aspecOptBits  = 5
	aspecRestBits = 1
	aspecPostBits = 5
	aspecKeyBits  = 5
	aspecKdBits   = 1
	aspecBlkBits  = 1
)

// PackAspec encodes a method/lambda/block's parameter shape into the
// 25-bit descriptor spec.md §3 defines. A nil args (e.g. a bare `for`
// body before §4.7's synthetic rewrite) packs to the zero value.
func PackAspec(args *ast.MethodArgs) int {
	if args == nil {
		return 0
	}
	req := len(args.Required)
	opt := len(args.Optional)
	rest := 0
	if args.Rest != "" {
		rest = 1
	}
	post := len(args.Post)
	kw := len(args.Keyword)
	kd := 0
	if args.KeywordRest != "" {
		kd = 1
	}
	blk := 0
	if args.Block != "" {
		blk = 1
	}
	v := req & (1<<aspecReqBits - 1)
	v = v<<aspecOptBits | (opt & (1<<aspecOptBits - 1))
	v = v<<aspecRestBits | (rest & 1)
	v = v<<aspecPostBits | (post & (1<<aspecPostBits - 1))
	v = v<<aspecKeyBits | (kw & (1<<aspecKeyBits - 1))
	v = v<<aspecKdBits | (kd & 1)
	v = v<<aspecBlkBits | (blk & 1)
	return v
}

// forAspec is the fixed synthetic descriptor spec.md §4.7 assigns the
// `for` loop's desugared block: one mandatory argument, packed "in the
// 25-bit Ax field as required=1 via the rest-flag encoding consistent
// with aspec" — required=1, everything else zero.
const forAspec = 1 << (aspecOptBits + aspecRestBits + aspecPostBits + aspecKeyBits + aspecKdBits + aspecBlkBits)

// AspecFields unpacks the width-tagged subfields back out, used by
// ZSUPER/YIELD/BLKPUSH to recover an enclosing method's arity.
type AspecFields struct {
	Req, Opt, Post, Keyword   int
	Rest, KeywordDict, Block  bool
}

func UnpackAspec(v int) AspecFields {
	blk := v & 1
	v >>= aspecBlkBits
	kd := v & 1
	v >>= aspecKdBits
	kw := v & (1<<aspecKeyBits - 1)
	v >>= aspecKeyBits
	post := v & (1<<aspecPostBits - 1)
	v >>= aspecPostBits
	rest := v & 1
	v >>= aspecRestBits
	opt := v & (1<<aspecOptBits - 1)
	v >>= aspecOptBits
	req := v & (1<<aspecReqBits - 1)
	return AspecFields{Req: req, Opt: opt, Post: post, Keyword: kw, Rest: rest != 0, KeywordDict: kd != 0, Block: blk != 0}
}

// AInfo derives the 12-bit ainfo word spec.md §3 says SUPER/ARGARY/
// BLKPUSH use to materialize argv from the current frame: the total
// positional arity in the high bits and a rest-flag in the low bit.
func AInfo(a AspecFields) int {
	total := a.Req + a.Opt
	rest := 0
	if a.Rest {
		rest = 1
	}
	v := (total & 0x3f) << 6
	v |= (a.Post & 0x1f) << 1
	v |= rest
	return v & 0xfff
}
