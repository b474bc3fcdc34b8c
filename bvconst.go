package gobmc

import (
	"fmt"
	"math/big"
	"strings"
)

var zero = big.NewInt(0)
var one = big.NewInt(1)

// BVConst is an arbitrary-width bit-vector value in two's complement.
// Arithmetic methods mutate the receiver and wrap at the width.
type BVConst struct {
	Size  uint
	mask  *big.Int
	value *big.Int
}

func makeMask(size uint) *big.Int {
	bytes := make([]byte, size/8)
	for i := uint(0); i < size/8; i++ {
		bytes[i] = 0xff
	}
	v := big.NewInt(0)
	v.SetBytes(bytes)
	for i := size / 8 * 8; i < size/8*8+size%8; i++ {
		v.SetBit(v, int(i), 1)
	}
	return v
}

func MakeBVConst(value int64, size uint) *BVConst {
	if size == 0 {
		return nil
	}
	return MakeBVConstFromBigint(big.NewInt(value), size)
}

func MakeBVConstFromBigint(value *big.Int, size uint) *BVConst {
	if size == 0 {
		return nil
	}

	mask := makeMask(size)
	v := new(big.Int).Set(value)
	if v.Cmp(zero) < 0 {
		v = v.Neg(v)
		v = v.Sub(v, one)
		v = v.Sub(mask, v)
	}
	v = v.And(v, mask)
	return &BVConst{Size: size, mask: mask, value: v}
}

// MakeBVConstOnes is the value with every bit set (BTOR2 `ones`).
func MakeBVConstOnes(size uint) *BVConst {
	if size == 0 {
		return nil
	}
	return &BVConst{Size: size, mask: makeMask(size), value: makeMask(size)}
}

// ParseBVConst parses a BTOR2 literal in the given radix (2 for
// `const`, 10 for `constd`, 16 for `consth`). Decimal literals may be
// negative; the value is reduced modulo 2^size.
func ParseBVConst(s string, radix int, size uint) (*BVConst, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero-width constant")
	}
	if radix != 10 && strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative literal %q in radix %d", s, radix)
	}
	v, ok := new(big.Int).SetString(s, radix)
	if !ok {
		return nil, fmt.Errorf("invalid radix-%d literal %q", radix, s)
	}
	return MakeBVConstFromBigint(v, size), nil
}

func (bv *BVConst) IsNegative() bool {
	return bv.value.Bit(int(bv.Size)-1) == 1
}

func (bv *BVConst) IsZero() bool {
	return bv.value.Cmp(zero) == 0
}

func (bv *BVConst) IsOne() bool {
	return bv.value.Cmp(one) == 0
}

func (bv *BVConst) HasAllBitsSet() bool {
	return bv.value.Cmp(bv.mask) == 0
}

func (bv *BVConst) Copy() *BVConst {
	return &BVConst{
		Size:  bv.Size,
		mask:  new(big.Int).Set(bv.mask),
		value: new(big.Int).Set(bv.value),
	}
}

func (bv *BVConst) String() string {
	return fmt.Sprintf("<BV%d 0x%x>", bv.Size, bv.value)
}

// BinaryString renders the value as exactly Size binary digits, the
// representation the BTOR2 witness format uses.
func (bv *BVConst) BinaryString() string {
	b := strings.Builder{}
	for i := int(bv.Size) - 1; i >= 0; i-- {
		if bv.value.Bit(i) == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (bv *BVConst) FitInLong() bool {
	return bv.value.BitLen() <= 64
}

func (bv *BVConst) AsULong() uint64 {
	// if it does not `FitInLong`, result is undefined
	return bv.value.Uint64()
}

func (bv *BVConst) AsLong() int64 {
	// if it does not `FitInLong`, result is undefined
	if !bv.IsNegative() {
		return bv.value.Int64()
	}
	bvCpy := bv.Copy()
	bvCpy.Not()
	bvCpy.Add(MakeBVConst(1, bv.Size))
	return -int64(bvCpy.AsULong())
}

func (bv *BVConst) Not() {
	bv.value.Not(bv.value)
	bv.value.And(bv.value, bv.mask)
}

func (bv *BVConst) Neg() {
	if bv.IsZero() {
		return
	}
	bv.value.Sub(bv.value, one)
	bv.value.Sub(bv.mask, bv.value)
	bv.value.And(bv.value, bv.mask)
}

func (bv *BVConst) sameSize(o *BVConst) error {
	if bv.Size != o.Size {
		return fmt.Errorf("different sizes %d and %d", bv.Size, o.Size)
	}
	return nil
}

func (bv *BVConst) Add(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.Add(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) Sub(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.Sub(bv.value, o.value)
	if bv.value.Cmp(zero) < 0 {
		bv.value.Add(bv.value, bv.mask)
		bv.value.Add(bv.value, one)
	}
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) Mul(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.Mul(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

// UDiv is unsigned division. Division by zero yields all bits set,
// matching the SMT-LIB bvudiv convention BTOR2 inherits.
func (bv *BVConst) UDiv(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		bv.value = new(big.Int).Set(bv.mask)
		return nil
	}
	bv.value = bv.value.Div(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) signedPair(o *BVConst) (*big.Int, *big.Int) {
	c1 := new(big.Int).Set(bv.value)
	if bv.IsNegative() {
		v := bv.Copy()
		v.Neg()
		c1 = new(big.Int).Neg(v.value)
	}
	c2 := new(big.Int).Set(o.value)
	if o.IsNegative() {
		v := o.Copy()
		v.Neg()
		c2 = new(big.Int).Neg(v.value)
	}
	return c1, c2
}

func (bv *BVConst) storeSigned(res *big.Int) {
	if res.Cmp(zero) < 0 {
		res = res.Neg(res)
		res = res.Sub(res, one)
		res = res.Sub(bv.mask, res)
	}
	res = res.And(res, bv.mask)
	bv.value = res
}

// SDiv rounds toward zero. Division by zero follows bvsdiv: 1 for a
// negative dividend, all bits set otherwise.
func (bv *BVConst) SDiv(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		if bv.IsNegative() {
			bv.value = big.NewInt(1)
		} else {
			bv.value = new(big.Int).Set(bv.mask)
		}
		return nil
	}
	c1, c2 := bv.signedPair(o)
	bv.storeSigned(c1.Quo(c1, c2))
	return nil
}

func (bv *BVConst) URem(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		return nil
	}
	bv.value = bv.value.Rem(bv.value, o.value)
	bv.value.And(bv.value, bv.mask)
	return nil
}

func (bv *BVConst) SRem(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		return nil
	}
	c1, c2 := bv.signedPair(o)
	bv.storeSigned(c1.Rem(c1, c2))
	return nil
}

func (bv *BVConst) And(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.And(bv.value, o.value)
	return nil
}

func (bv *BVConst) Or(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.Or(bv.value, o.value)
	return nil
}

func (bv *BVConst) Xor(o *BVConst) error {
	if err := bv.sameSize(o); err != nil {
		return err
	}
	bv.value = bv.value.Xor(bv.value, o.value)
	return nil
}

// ShiftCount reads the value as a shift amount for a width-bit
// operand. Amounts at or above the width shift every bit out, so
// anything too large to fit a uint clamps to the width itself.
func (bv *BVConst) ShiftCount(width uint) uint {
	if !bv.FitInLong() || bv.AsULong() >= uint64(width) {
		return width
	}
	return uint(bv.AsULong())
}

func (bv *BVConst) AShr(n uint) {
	if n >= bv.Size {
		if bv.IsNegative() {
			bv.value = new(big.Int).Set(bv.mask)
		} else {
			bv.value = big.NewInt(0)
		}
		return
	}
	if n == 0 {
		return
	}

	isNeg := bv.IsNegative()
	bv.value = bv.value.Rsh(bv.value, n)
	if isNeg {
		mask := makeMask(n)
		mask = mask.Lsh(mask, bv.Size-n)
		bv.value = bv.value.Or(bv.value, mask)
	}
}

func (bv *BVConst) LShr(n uint) {
	if n >= bv.Size {
		bv.value = big.NewInt(0)
		return
	}
	bv.value = bv.value.Rsh(bv.value, n)
}

func (bv *BVConst) Shl(n uint) {
	if n >= bv.Size {
		bv.value = big.NewInt(0)
		return
	}
	bv.value = bv.value.Lsh(bv.value, n)
	bv.value.And(bv.value, bv.mask)
}

func (bv *BVConst) Concat(o *BVConst) {
	oCpy := o.Copy()
	oCpy.ZExt(bv.Size)

	bv.ZExt(o.Size)
	bv.Shl(o.Size)
	bv.Or(oCpy)
}

func (bv *BVConst) Slice(high uint, low uint) *BVConst {
	if high < low || high >= bv.Size {
		return nil
	}

	res := MakeBVConst(0, high-low+1)
	v := new(big.Int).Rsh(bv.value, low)
	res.value = v.And(v, res.mask)
	return res
}

func (bv *BVConst) ZExt(bits uint) {
	bv.Size += bits
	bv.mask = makeMask(bv.Size)
}

func (bv *BVConst) SExt(bits uint) {
	if !bv.IsNegative() {
		bv.ZExt(bits)
		return
	}

	newBits := makeMask(bits)
	newBits.Lsh(newBits, bv.Size)
	bv.value = bv.value.Or(newBits, bv.value)

	bv.Size += bits
	bv.mask = makeMask(bv.Size)
}

func (bv *BVConst) Eq(o *BVConst) (bool, error) {
	if err := bv.sameSize(o); err != nil {
		return false, err
	}
	return bv.value.Cmp(o.value) == 0, nil
}

func (bv *BVConst) UGt(o *BVConst) (bool, error) {
	if err := bv.sameSize(o); err != nil {
		return false, err
	}
	return bv.value.Cmp(o.value) > 0, nil
}

func (bv *BVConst) UGe(o *BVConst) (bool, error) {
	if err := bv.sameSize(o); err != nil {
		return false, err
	}
	return bv.value.Cmp(o.value) >= 0, nil
}

func (bv *BVConst) ULt(o *BVConst) (bool, error) {
	v, err := bv.UGe(o)
	return !v, err
}

func (bv *BVConst) ULe(o *BVConst) (bool, error) {
	v, err := bv.UGt(o)
	return !v, err
}

func (bv *BVConst) SGt(o *BVConst) (bool, error) {
	if err := bv.sameSize(o); err != nil {
		return false, err
	}
	if bv.IsNegative() != o.IsNegative() {
		return o.IsNegative(), nil
	}
	return bv.value.Cmp(o.value) > 0, nil
}

func (bv *BVConst) SGe(o *BVConst) (bool, error) {
	v, err := bv.Eq(o)
	if err != nil || v {
		return v, err
	}
	return bv.SGt(o)
}

func (bv *BVConst) SLt(o *BVConst) (bool, error) {
	v, err := bv.SGe(o)
	return !v, err
}

func (bv *BVConst) SLe(o *BVConst) (bool, error) {
	v, err := bv.SGt(o)
	return !v, err
}
