package iaddressrepo

import "context"

// IAddressRepository validates address ownership for checkout. Address CRUD
// itself belongs to the profile collaborator.
type IAddressRepository interface {
	BelongsToUser(ctx context.Context, addressID, userID int64) (bool, error)
}
