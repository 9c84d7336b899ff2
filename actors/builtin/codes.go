package builtin

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// The built-in actor code IDs
var (
	SystemActorCodeID   cid.Cid
	InitActorCodeID     cid.Cid
	AccountActorCodeID  cid.Cid
	TimelockActorCodeID cid.Cid
	CounterActorCodeID  cid.Cid
)

// Set of actor code types that can represent external signing parties.
var CallerTypesSignable []cid.Cid

var builtinActorNames map[cid.Cid]string

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	builtinActorNames = make(map[cid.Cid]string)

	for id, name := range map[*cid.Cid]string{
		&SystemActorCodeID:   "system",
		&InitActorCodeID:     "init",
		&AccountActorCodeID:  "account",
		&TimelockActorCodeID: "timelock",
		&CounterActorCodeID:  "counter",
	} {
		c, err := builder.Sum([]byte("fil/1/" + name))
		if err != nil {
			panic(err)
		}
		*id = c
		builtinActorNames[c] = name
	}

	CallerTypesSignable = []cid.Cid{AccountActorCodeID}
}

// ActorNameByCode returns the (string) name of the actor given a cid code.
func ActorNameByCode(code cid.Cid) string {
	if !code.Defined() {
		return "<undefined>"
	}

	name, ok := builtinActorNames[code]
	if !ok {
		return "<unknown>"
	}
	return name
}

// IsAccountActor tests whether the code CID is the account actor.
func IsAccountActor(code cid.Cid) bool {
	return code.Equals(AccountActorCodeID)
}
