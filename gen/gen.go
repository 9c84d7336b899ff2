package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/go-timelock/actors/builtin/account"
	"github.com/filecoin-project/go-timelock/actors/builtin/counter"
	init_ "github.com/filecoin-project/go-timelock/actors/builtin/init"
	"github.com/filecoin-project/go-timelock/actors/builtin/manifest"
	"github.com/filecoin-project/go-timelock/actors/builtin/system"
	"github.com/filecoin-project/go-timelock/actors/builtin/timelock"
	"github.com/filecoin-project/go-timelock/support/vm"
)

func main() {
	// Actors
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/system/cbor_gen.go", "system",
		// actor state
		system.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/manifest/cbor_gen.go", "manifest",
		manifest.Manifest{},
		manifest.ManifestEntry{},
		manifest.ManifestData{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/account/cbor_gen.go", "account",
		// actor state
		account.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/init/cbor_gen.go", "init",
		// actor state
		init_.State{},
		// method params and returns
		init_.ConstructorParams{},
		init_.ExecParams{},
		init_.ExecReturn{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/timelock/cbor_gen.go", "timelock",
		// actor state
		timelock.State{},
		// method params and returns
		timelock.ConstructorParams{},
		timelock.Action{},
		timelock.QueueReturn{},
		timelock.ExecuteReturn{},
		timelock.GetTimestampParams{},
		timelock.GetTimestampReturn{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/counter/cbor_gen.go", "counter",
		// actor state
		counter.State{},
		// method params and returns
		counter.ConstructorParams{},
		counter.RelayParams{},
		counter.RelayReturn{},
		counter.CountReturn{},
	); err != nil {
		panic(err)
	}

	// VM
	if err := gen.WriteTupleEncodersToFile("./support/vm/cbor_gen.go", "vm",
		vm.Actor{},
		vm.Receipt{},
		vm.EmptyObject{},
	); err != nil {
		panic(err)
	}
}
