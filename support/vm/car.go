package vm

import (
	"context"
	"io"

	"github.com/filecoin-project/go-state-types/abi"
	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	format "github.com/ipfs/go-ipld-format"
	car "github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-timelock/actors/builtin"
	"github.com/filecoin-project/go-timelock/actors/util/adt"
	"github.com/filecoin-project/go-timelock/support/ipld"
)

// ExportCAR writes the committed state tree and the receipts to w as a CAR file.
// The header's roots are the state root followed by the receipts root.
func (vm *VM) ExportCAR(ctx context.Context, w io.Writer) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.exportCAR(ctx, w)
}

func (vm *VM) exportCAR(ctx context.Context, w io.Writer) error {
	if _, err := vm.checkpoint(); err != nil {
		return err
	}
	receiptsRoot, err := vm.receipts.Root()
	if err != nil {
		return err
	}
	roots := []cid.Cid{vm.stateRoot, receiptsRoot}

	if err := car.WriteHeader(&car.CarHeader{Roots: roots, Version: 1}, w); err != nil {
		return xerrors.Errorf("failed to write car header: %w", err)
	}

	seen := cid.NewSet()
	var walk func(c cid.Cid) error
	walk = func(c cid.Cid) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !seen.Visit(c) {
			return nil
		}
		// inlined blocks are carried by the cid itself
		dmh, err := mh.Decode(c.Hash())
		if err != nil {
			return err
		}
		if dmh.Code == mh.IDENTITY {
			return nil
		}

		blk, err := vm.bs.Get(c)
		if err != nil {
			return xerrors.Errorf("failed to load block %s: %w", c, err)
		}
		if err := carutil.LdWrite(w, c.Bytes(), blk.RawData()); err != nil {
			return err
		}
		if c.Prefix().Codec != cid.DagCBOR {
			return nil
		}

		var nd format.Node
		nd, err = ipldcbor.DecodeBlock(blk)
		if err != nil {
			return xerrors.Errorf("failed to decode block %s: %w", c, err)
		}
		for _, l := range nd.Links() {
			if err := walk(l.Cid); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root); err != nil {
			return err
		}
	}
	return nil
}

type carLoader struct {
	bs ipldcbor.IpldBlockstore
}

func (l carLoader) Put(b block.Block) error {
	return l.bs.Put(b)
}

// NewVMFromCAR creates a VM over the state tree and receipts read from a CAR file written by ExportCAR.
func NewVMFromCAR(ctx context.Context, actorImpls ActorImplLookup, r io.Reader, epoch abi.ChainEpoch) (*VM, error) {
	bs := ipld.NewSyncBlockStoreInMemory()
	header, err := car.LoadCar(carLoader{bs}, r)
	if err != nil {
		return nil, xerrors.Errorf("failed to load car: %w", err)
	}
	if len(header.Roots) != 2 {
		return nil, xerrors.Errorf("expected state and receipts roots, got %d roots", len(header.Roots))
	}

	store := adt.WrapBlockStore(ctx, bs)
	actors, err := adt.AsMap(store, header.Roots[0], builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load state tree %s: %w", header.Roots[0], err)
	}
	vm := newVM(ctx, actorImpls, bs, store, actors, header.Roots[0])
	vm.receipts, err = adt.AsArray(store, header.Roots[1], builtin.DefaultAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load receipts %s: %w", header.Roots[1], err)
	}
	vm.currentEpoch = epoch
	return vm, nil
}
