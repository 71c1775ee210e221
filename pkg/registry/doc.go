// Package registry defines the data model and storage contracts of the mail
// registry.
//
// # Architecture
//
// The package follows the Repository pattern:
//
//   - Repository: storage backend with health check and transaction support
//   - Transaction: atomic unit exposing the same per-entity stores
//   - ServiceRepository, UserRepository, AdminRepository, CouncilRepository,
//     ContactRepository: soft-deletable reference data
//   - MailInRepository, MailOutRepository: mail items and their join rows
//   - StatsRepository: aggregate queries used by the dashboard
//
// Business rules (reference validation, replace semantics, uniqueness checks)
// live in the managers under internal/registry; stores only persist.
//
// # Error Handling
//
// Every error leaving a store or a manager is an *Error of a closed set of
// kinds (validation, not_found, conflict, unauthorized, internal). Helpers such
// as IsNotFoundError and IsConflictError classify wrapped errors.
//
//	mail, err := mailIn.GetByID(ctx, 42)
//	if err != nil {
//		if registry.IsNotFoundError(err) {
//			// 404
//		}
//		return err
//	}
//
// # Pagination
//
// Lists take a PageRequest and return a Page envelope:
//
//	req := registry.PageRequest{Page: 2, Limit: 20}.Normalize(registry.DefaultPageLimit)
//	page := registry.NewPage(items, total, req)
//
// # Transactions
//
// Multi-table writes go through RunInTx:
//
//	err := registry.RunInTx(ctx, repo, func(tx registry.Transaction) error {
//		if err := tx.MailIn().CreateMailIn(ctx, mail); err != nil {
//			return err
//		}
//		return tx.MailIn().AddCopies(ctx, mail.ID, councilIDs)
//	})
package registry
