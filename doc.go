// Package tally provides a closed-economy value ledger for Go applications.
//
// Tally is designed as a library, not a service. A single System owner mints
// a fixed supply into a pool at genesis; teams and users earn value by
// contributing assets (boards, posts, comments, expressions) and exchange it
// among themselves. Every movement is written to an append-only activity log,
// and the total of all value records always equals the genesis supply.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	engine := tally.New(memory.New(), tally.WithBootstrap(true))
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Actors
//
// Operations are issued through an Actor bound to one owner:
//
//	system, _ := engine.System(ctx)
//	alice, _ := system.CreateUser(ctx, "alice")
//
//	board, _ := alice.CreateBoard(ctx, "Ideas", "")
//	post, _ := alice.CreatePost(ctx, board.ID, "hello") // rewarded with 3 units
//
//	// Handing the post to the System cashes out the value it holds.
//	acts, _ := alice.TransferAssets(ctx, system.ID(), []tally.AssetID{post.ID})
//
// Only the System actor may create owners, split values out of the pool or
// reset the ledger; other roles get ErrForbidden.
//
// # Settlement
//
// Contracts carry recurring terms. Start launches a worker that scans active
// contracts every poll interval and executes each due term's pending
// transfer. Genesis installs an airdrop contract that sends one unit to a
// random owner every fifteen minutes.
//
// # Storage
//
// Backends live under store/: memory for tests, postgres and sqlite via
// Grove, and mongo. Pool debits are conditional in every backend so the
// pool never goes negative, and lock/redis serializes pool access across
// processes.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	own_01h2xcejqtf2nbrexx3vqjhp41   // Owner ID
//	ast_01h2xcejqtf2nbrexx3vqjhp41   // Asset ID
//	val_01h455vb4pex5vsknk084sn02q   // Value ID
package tally
