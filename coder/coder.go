// Package coder implements the partitioned recursive-Rice entropy coder
// LINNE uses for LPC-network residuals: the block splits into 2^p equal
// partitions, each carries its own two-stage Rice parameters (k1, k2), and
// the encoder searches partition orders to minimize estimated bit length.
// Grounded on linne_coder.c's LINNECoder_Encode/Decode family, reworked
// around the bitstream package instead of a raw BitStream handle.
package coder

import (
	"math"

	"github.com/linne-codec/linne/internal/bitstream"
	"github.com/linne-codec/linne/internal/fixed"
	"github.com/linne-codec/linne/internal/zigzag"
)

const (
	// log2MaxPartitions caps the partition order search.
	log2MaxPartitions = 8
	maxPartitions      = 1 << log2MaxPartitions
	// riceParameterBits is the fixed width of the first partition's k2 field.
	riceParameterBits = 5
)

// optX is the positive root of (x-1)^2 + ln(2)*x*ln(x) = 0, used by the
// geometric-distribution optimal-k derivation below.
const optX = 0.5127629514437670454896078808815218508243560791015625

// optimalRiceParameters derives the two-stage Rice parameters (k1, k2) that
// minimize expected bits-per-sample for a geometric source with the given
// ZigZag mean, and returns that estimate.
func optimalRiceParameters(mean float64) (k1, k2 uint32, bitsPerSample float64) {
	rho := 1.0 / (1.0 + mean)
	k2f := math.Floor(math.Log2(math.Log(optX) / math.Log(1.0-rho)))
	if k2f < 0 || math.IsNaN(k2f) {
		k2f = 0
	}
	k2 = uint32(k2f)
	k1 = k2 + 1

	fk1 := math.Pow(1.0-rho, float64(uint32(1)<<k1))
	fk2 := math.Pow(1.0-rho, float64(uint32(1)<<k2))
	bitsPerSample = (1.0+float64(k1))*(1.0-fk1) + (1.0+float64(k2)+1.0/(1.0-fk2))*fk1
	return k1, k2, bitsPerSample
}

// gammaCost returns the bit length of the gamma code for v, used by the
// partition-order search without actually emitting bits.
func gammaCost(v uint32) int {
	if v == 0 {
		return 1
	}
	return 2*int(fixed.Log2Ceil(v+2)) - 1
}

func putGamma(w *bitstream.Writer, v uint32) error {
	if v == 0 {
		return w.PutBits(1, 1)
	}
	ndigit := fixed.Log2Ceil(v + 2)
	if err := w.PutBits(0, uint(ndigit-1)); err != nil {
		return err
	}
	return w.PutBits(v+1, uint(ndigit))
}

func getGamma(r *bitstream.Reader) (uint32, error) {
	ndigit, err := r.GetZeroRunLength()
	if err != nil {
		return 0, err
	}
	ndigit++
	if ndigit == 1 {
		return 0, nil
	}
	bitsbuf, err := r.GetBits(uint(ndigit - 1))
	if err != nil {
		return 0, err
	}
	return (uint32(1)<<(ndigit-1) + bitsbuf) - 1, nil
}

func putRecursiveRice(w *bitstream.Writer, k1, k2 uint32, uval uint32) error {
	k1pow := uint32(1) << k1
	if uval < k1pow {
		if err := w.PutBits(1, 1); err != nil {
			return err
		}
		return w.PutBits(uval, uint(k1))
	}
	uval -= k1pow
	if err := w.PutZeroRun(1 + (uval >> k2)); err != nil {
		return err
	}
	k2mask := uint32(1)<<k2 - 1
	return w.PutBits(uval&k2mask, uint(k2))
}

func getRecursiveRice(r *bitstream.Reader, k1, k2 uint32) (uint32, error) {
	quot, err := r.GetZeroRunLength()
	if err != nil {
		return 0, err
	}
	if quot == 0 {
		return r.GetBits(uint(k1))
	}
	uval, err := r.GetBits(uint(k2))
	if err != nil {
		return 0, err
	}
	return uval + (uint32(1) << k1) + ((quot - 1) << k2), nil
}

// maxPartitionOrder returns the largest p <= log2MaxPartitions such that
// numSamples is evenly divisible by 2^p.
func maxPartitionOrder(numSamples uint32) uint32 {
	order := uint32(0)
	for order < log2MaxPartitions && numSamples%(uint32(1)<<(order+1)) == 0 {
		order++
	}
	return order
}

// Encode writes data as a partitioned recursive-Rice code. Any len(data)
// is accepted: the partition-order search only tries orders up to
// maxPartitionOrder(len(data)), so every partition it tries has equal size.
func Encode(w *bitstream.Writer, data []int32) error {
	numSamples := uint32(len(data))
	uvals := make([]uint32, numSamples)
	for i, x := range data {
		uvals[i] = zigzag.Encode32(x)
	}

	maxOrder := maxPartitionOrder(numSamples)
	maxParts := uint32(1) << maxOrder

	partMean := make([][]float64, maxOrder+1)
	partMean[maxOrder] = make([]float64, maxParts)
	nsmplMax := numSamples / maxParts
	for part := uint32(0); part < maxParts; part++ {
		var sum float64
		for s := uint32(0); s < nsmplMax; s++ {
			sum += float64(uvals[part*nsmplMax+s])
		}
		partMean[maxOrder][part] = sum / float64(nsmplMax)
	}
	for order := int(maxOrder) - 1; order >= 0; order-- {
		n := uint32(1) << uint(order)
		partMean[order] = make([]float64, n)
		for part := uint32(0); part < n; part++ {
			partMean[order][part] = (partMean[order+1][2*part] + partMean[order+1][2*part+1]) / 2.0
		}
	}

	bestOrder := uint32(0)
	minBits := math.MaxFloat64
	for order := uint32(0); order <= maxOrder; order++ {
		nsmpl := numSamples >> order
		var bits float64
		var prevK2 uint32
		for part := uint32(0); part < (uint32(1) << order); part++ {
			_, k2, bps := optimalRiceParameters(partMean[order][part])
			bits += bps * float64(nsmpl)
			if part == 0 {
				bits += riceParameterBits
			} else {
				diff := int32(k2) - int32(prevK2)
				bits += float64(gammaCost(zigzag.Encode32(diff)))
			}
			prevK2 = k2
		}
		if bits < minBits {
			minBits = bits
			bestOrder = order
		}
	}

	if err := w.PutBits(bestOrder, log2MaxPartitions); err != nil {
		return err
	}
	nsmpl := numSamples >> bestOrder
	var prevK2 uint32
	for part := uint32(0); part < (uint32(1) << bestOrder); part++ {
		k1, k2, _ := optimalRiceParameters(partMean[bestOrder][part])
		if part == 0 {
			if err := w.PutBits(k2, riceParameterBits); err != nil {
				return err
			}
		} else {
			diff := int32(k2) - int32(prevK2)
			if err := putGamma(w, zigzag.Encode32(diff)); err != nil {
				return err
			}
		}
		prevK2 = k2
		for s := uint32(0); s < nsmpl; s++ {
			if err := putRecursiveRice(w, k1, k2, uvals[part*nsmpl+s]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode reads numSamples values previously written by Encode.
func Decode(r *bitstream.Reader, numSamples uint32) ([]int32, error) {
	bestOrder, err := r.GetBits(log2MaxPartitions)
	if err != nil {
		return nil, err
	}

	data := make([]int32, numSamples)
	nsmpl := numSamples >> bestOrder
	var k2 uint32
	for part := uint32(0); part < (uint32(1) << bestOrder); part++ {
		if part == 0 {
			k2, err = r.GetBits(riceParameterBits)
			if err != nil {
				return nil, err
			}
		} else {
			udiff, err := getGamma(r)
			if err != nil {
				return nil, err
			}
			k2 = uint32(int32(k2) + zigzag.Decode32(udiff))
		}
		k1 := k2 + 1
		for s := uint32(0); s < nsmpl; s++ {
			uval, err := getRecursiveRice(r, k1, k2)
			if err != nil {
				return nil, err
			}
			data[part*nsmpl+s] = zigzag.Decode32(uval)
		}
	}
	return data, nil
}
