package vm

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	sha256simd "github.com/minio/sha256-simd"
	"github.com/multiformats/go-multibase"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

//
// Test vector generation utilities
//

// VectorsDirEnv names the environment variable enabling vector generation.
// When set, every applied message is written to that directory as a self-contained vector.
const VectorsDirEnv = "TIMELOCK_VECTORS_DIR"

// TestVector captures one message application: the state it was applied to, the message and its outcome.
type TestVector struct {
	Epoch abi.ChainEpoch `json:"epoch"`
	// CAR export of the pre-state, multibase encoded.
	PreState      string `json:"pre_state"`
	PreStateRoot  string `json:"pre_state_root"`
	PostStateRoot string `json:"post_state_root"`

	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Method uint64 `json:"method"`
	Params string `json:"params"`

	ExitCode int64  `json:"exit_code"`
	Return   string `json:"return"`
}

type vectorGen struct {
	dir    string
	vector TestVector
}

func newVectorGen() *vectorGen {
	// check environment variables to determine if generation is on
	return &vectorGen{dir: os.Getenv(VectorsDirEnv)}
}

func (g *vectorGen) enabled() bool {
	return g.dir != ""
}

// Called with the VM lock held.
func (g *vectorGen) before(v *VM) error {
	if !g.enabled() {
		return nil
	}
	var buf bytes.Buffer
	if err := v.exportCAR(v.ctx, &buf); err != nil {
		return err
	}
	pre, err := multibase.Encode(multibase.Base64, buf.Bytes())
	if err != nil {
		return err
	}
	g.vector = TestVector{
		Epoch:        v.currentEpoch,
		PreState:     pre,
		PreStateRoot: v.stateRoot.String(),
	}
	return nil
}

// Called with the VM lock held.
func (g *vectorGen) after(v *VM, from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params interface{}, result MessageResult) error {
	if !g.enabled() {
		return nil
	}
	var paramBytes []byte
	if p, ok := params.(cbor.Marshaler); ok {
		var err error
		if paramBytes, err = serialize(p); err != nil {
			return err
		}
	} else if !isNil(params) {
		return xerrors.Errorf("params of type %T are not marshalable", params)
	}
	retBytes, err := serialize(result.Ret)
	if err != nil {
		return err
	}

	g.vector.From = from.String()
	g.vector.To = to.String()
	g.vector.Value = value.String()
	g.vector.Method = uint64(method)
	g.vector.ExitCode = int64(result.Code)
	g.vector.PostStateRoot = v.stateRoot.String()
	if g.vector.Params, err = multibase.Encode(multibase.Base64, paramBytes); err != nil {
		return err
	}
	if g.vector.Return, err = multibase.Encode(multibase.Base64, retBytes); err != nil {
		return err
	}

	vectorBytes, err := json.MarshalIndent(&g.vector, "", "  ")
	if err != nil {
		return err
	}

	actName := "unknown"
	if toID, found := v.normalizeAddress(to); found {
		if act, found, err := v.getActor(toID); err == nil && found {
			actName = builtin.ActorNameByCode(act.Code)
		}
	}
	h := sha256simd.Sum256(vectorBytes)
	fname := fmt.Sprintf("%s-%s-%d.json", hex.EncodeToString(h[:8]), actName, method)
	return writeVector(g.dir, fname, vectorBytes)
}

func writeVector(dir, fname string, vectorBytes []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fname), vectorBytes, 0644)
}

// LoadVector reads a vector written during message application.
func LoadVector(path string) (*TestVector, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tv TestVector
	if err := json.Unmarshal(b, &tv); err != nil {
		return nil, xerrors.Errorf("failed to decode vector %s: %w", path, err)
	}
	return &tv, nil
}

// Replay applies the vector's message to its pre-state and checks the outcome against the recorded one.
func (tv *TestVector) Replay(ctx context.Context, actorImpls ActorImplLookup) error {
	_, car, err := multibase.Decode(tv.PreState)
	if err != nil {
		return xerrors.Errorf("failed to decode pre-state: %w", err)
	}
	v, err := NewVMFromCAR(ctx, actorImpls, bytes.NewReader(car), tv.Epoch)
	if err != nil {
		return err
	}
	v.vectors = &vectorGen{}
	if v.StateRoot().String() != tv.PreStateRoot {
		return xerrors.Errorf("pre-state root %s, expected %s", v.StateRoot(), tv.PreStateRoot)
	}

	from, err := addr.NewFromString(tv.From)
	if err != nil {
		return err
	}
	to, err := addr.NewFromString(tv.To)
	if err != nil {
		return err
	}
	value, err := big.FromString(tv.Value)
	if err != nil {
		return err
	}
	_, params, err := multibase.Decode(tv.Params)
	if err != nil {
		return err
	}
	_, expectedRet, err := multibase.Decode(tv.Return)
	if err != nil {
		return err
	}

	result := v.ApplyMessage(from, to, value, abi.MethodNum(tv.Method), builtin.CBORBytes(params))
	if result.Code != exitcode.ExitCode(tv.ExitCode) {
		return xerrors.Errorf("exit code %d, expected %d", result.Code, tv.ExitCode)
	}
	ret, err := serialize(result.Ret)
	if err != nil {
		return err
	}
	if !bytes.Equal(ret, expectedRet) {
		return xerrors.Errorf("return %x, expected %x", ret, expectedRet)
	}
	if root := v.StateRoot(); root.String() != tv.PostStateRoot {
		return xerrors.Errorf("post-state root %s, expected %s", root, tv.PostStateRoot)
	}
	return nil
}
