package layout

import "github.com/gogpu/psoarchive/signature"

// MaxBindingGroups is the capacity of a SignatureArray.
const MaxBindingGroups = signature.MaxBindingGroups

// maxTotalSets bounds the descriptor sets any layout can produce: each
// signature needs at most one set per mutability class.
const maxTotalSets = MaxBindingGroups * signature.NumClasses

// SignatureArray holds at most one signature per binding group, indexed by
// the signature's binding index. Empty slots are nil.
type SignatureArray [MaxBindingGroups]*signature.ResourceSignature

// Sort places each non-nil signature at the slot named by its binding index.
//
// It returns the filled array and the highest used binding index plus one.
// Sort fails with a *ConfigError if two signatures claim the same index or an
// index is out of range; no partial array is returned in that case.
func Sort(sigs []*signature.ResourceSignature) (SignatureArray, uint32, error) {
	var arr SignatureArray
	var count uint32

	for _, sig := range sigs {
		if sig == nil {
			continue
		}

		idx := sig.BindingIndex()
		if idx >= MaxBindingGroups {
			return SignatureArray{}, 0, &ConfigError{
				Index:     idx,
				Signature: sig.Name(),
				Err:       ErrBindingIndexOutOfRange,
			}
		}
		if prev := arr[idx]; prev != nil {
			return SignatureArray{}, 0, &ConfigError{
				Index:     idx,
				Signature: sig.Name(),
				Existing:  prev.Name(),
				Err:       ErrDuplicateBindingIndex,
			}
		}

		arr[idx] = sig
		count = max(count, idx+1)
	}

	return arr, count, nil
}
