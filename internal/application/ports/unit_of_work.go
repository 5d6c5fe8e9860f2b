// Package ports - UnitOfWork owns transaction boundaries.
//
// One UnitOfWork.Execute call is one database transaction: row locks taken
// inside fn are held until commit, an error from fn rolls everything back.
package ports

import "context"

// UnitOfWork runs a function inside a database transaction.
//
// The context passed to fn carries the transaction; every repository call
// inside fn must use that context, not the outer one.
//
//	err := uow.Execute(ctx, func(txCtx context.Context) error {
//	    w, err := wallets.FindByIDForUpdate(txCtx, id)
//	    if err != nil {
//	        return err // rollback
//	    }
//	    return ledger.Insert(txCtx, entry) // nil → commit
//	})
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}
