package builtin

import (
	"encoding/binary"
	"regexp"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"
)

// FirstExportedMethodNumber is the lowest method number derivable from a function signature.
// Numbers below it are reserved for methods addressed directly by number.
const FirstExportedMethodNumber = abi.MethodNum(1 << 24)

const signatureHashDomain = "1|"

var signaturePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\(([A-Za-z0-9_\[\]]+(,[A-Za-z0-9_\[\]]+)*)?\)$`)

// ValidateSignature checks that a function signature is of the form name(type,type,...) with no whitespace.
func ValidateSignature(signature string) error {
	if !signaturePattern.MatchString(signature) {
		return xerrors.Errorf("malformed function signature %q", signature)
	}
	return nil
}

// GenerateSignatureMethodNum derives the method number addressed by a textual function signature.
// The number is the first big-endian 4-byte chunk of blake2b-512("1|" + signature) that is not below
// FirstExportedMethodNumber.
func GenerateSignatureMethodNum(signature string) (abi.MethodNum, error) {
	if err := ValidateSignature(signature); err != nil {
		return 0, err
	}
	digest := blake2b.Sum512([]byte(signatureHashDomain + signature))
	for i := 0; i+4 <= len(digest); i += 4 {
		num := abi.MethodNum(binary.BigEndian.Uint32(digest[i : i+4]))
		if num >= FirstExportedMethodNumber {
			return num, nil
		}
	}
	return 0, xerrors.Errorf("no method number available for signature %q", signature)
}

func MustGenerateSignatureMethodNum(signature string) abi.MethodNum {
	num, err := GenerateSignatureMethodNum(signature)
	if err != nil {
		panic(err)
	}
	return num
}
