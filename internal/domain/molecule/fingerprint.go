package molecule

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
	"sort"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// FingerprintType identifies the fingerprint algorithm.
type FingerprintType string

const (
	// FingerprintMorgan is the circular (ECFP-like) fingerprint.
	FingerprintMorgan FingerprintType = "morgan"
)

// Default Morgan parameters.
const (
	DefaultMorganRadius = 2
	DefaultMorganBits   = 2048
)

// ─────────────────────────────────────────────────────────────────────────────
// Fingerprint Structure
// ─────────────────────────────────────────────────────────────────────────────

// Fingerprint is a packed bit vector. Bit i lives in byte i/8 at position i%8.
type Fingerprint struct {
	Type      FingerprintType `json:"type"`
	Bits      []byte          `json:"bits"`
	Length    int             `json:"length"`
	NumOnBits int             `json:"numOnBits"`
}

// NewFingerprint wraps raw bit data, counting the set bits.
func NewFingerprint(fpType FingerprintType, data []byte, length int) *Fingerprint {
	onBits := 0
	for _, b := range data {
		onBits += bits.OnesCount8(b)
	}
	return &Fingerprint{
		Type:      fpType,
		Bits:      data,
		Length:    length,
		NumOnBits: onBits,
	}
}

// GetBit returns true if the bit at index is set.
func (fp *Fingerprint) GetBit(index int) bool {
	if index < 0 || index >= fp.Length {
		return false
	}
	return fp.Bits[index/8]&(1<<uint(index%8)) != 0
}

// SetBit sets the bit at index.
func (fp *Fingerprint) SetBit(index int) {
	if index < 0 || index >= fp.Length {
		return
	}
	old := fp.Bits[index/8]
	fp.Bits[index/8] |= 1 << uint(index%8)
	if old != fp.Bits[index/8] {
		fp.NumOnBits++
	}
}

// OnBits lists the set bit indices in ascending order.
func (fp *Fingerprint) OnBits() []int {
	out := make([]int, 0, fp.NumOnBits)
	for i := 0; i < fp.Length; i++ {
		if fp.GetBit(i) {
			out = append(out, i)
		}
	}
	return out
}

// ToBytes returns the packed bits, suitable for binary vector columns.
func (fp *Fingerprint) ToBytes() []byte {
	return fp.Bits
}

// FingerprintFromBytes rebuilds a fingerprint from packed bits.
func FingerprintFromBytes(fpType FingerprintType, data []byte, length int) *Fingerprint {
	return NewFingerprint(fpType, data, length)
}

// ─────────────────────────────────────────────────────────────────────────────
// Morgan (Circular) Fingerprint
// ─────────────────────────────────────────────────────────────────────────────

// MorganFingerprint computes a circular fingerprint over heavy atoms. Each
// atom starts from an invariant of element, degree, hydrogens, charge and
// ring membership; every iteration up to radius folds in the sorted
// (bond order, neighbour identifier) pairs. All identifiers of all iterations
// are folded into nBits.
func MorganFingerprint(m *Molecule, radius, nBits int) (*Fingerprint, error) {
	if radius < 0 {
		return nil, errors.Newf(errors.ErrCodeFingerprintFailed, "radius must be non-negative, got %d", radius)
	}
	if nBits <= 0 || nBits%8 != 0 {
		return nil, errors.Newf(errors.ErrCodeFingerprintFailed, "bit length must be a positive multiple of 8, got %d", nBits)
	}
	fp := NewFingerprint(FingerprintMorgan, make([]byte, nBits/8), nBits)

	ri := m.RingInfo()
	ids := make([]uint64, len(m.Atoms))
	for i, a := range m.Atoms {
		if a.IsHydrogen() {
			continue
		}
		ring := 0
		if ri.AtomInRing(i) {
			ring = 1
		}
		arom := 0
		if m.IsAromaticAtom(i) {
			arom = 1
		}
		ids[i] = hashInts(a.Element().Number, m.HeavyDegree(i), m.TotalHydrogens(i), a.Charge+8, a.Isotope, ring, arom)
		fp.SetBit(int(ids[i] % uint64(nBits)))
	}

	for iter := 0; iter < radius; iter++ {
		next := make([]uint64, len(ids))
		for i, a := range m.Atoms {
			if a.IsHydrogen() {
				continue
			}
			type pair struct {
				order int
				id    uint64
			}
			var env []pair
			for _, b := range m.adj[i] {
				nb := m.Bonds[b].Other(i)
				if m.Atoms[nb].IsHydrogen() {
					continue
				}
				order := int(m.Bonds[b].Order)
				if m.IsAromaticBond(b) {
					order = int(BondAromatic)
				}
				env = append(env, pair{order, ids[nb]})
			}
			sort.Slice(env, func(x, y int) bool {
				if env[x].order != env[y].order {
					return env[x].order < env[y].order
				}
				return env[x].id < env[y].id
			})
			h := fnv.New64a()
			writeUint64(h, uint64(iter+1))
			writeUint64(h, ids[i])
			for _, p := range env {
				writeUint64(h, uint64(p.order))
				writeUint64(h, p.id)
			}
			next[i] = h.Sum64()
			fp.SetBit(int(next[i] % uint64(nBits)))
		}
		ids = next
	}
	return fp, nil
}

type hashWriter interface{ Write([]byte) (int, error) }

func writeUint64(h hashWriter, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashInts(vals ...int) uint64 {
	h := fnv.New64a()
	for _, v := range vals {
		writeUint64(h, uint64(int64(v)))
	}
	return h.Sum64()
}
