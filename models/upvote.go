package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// HasUpvote reports whether userID already upvoted the issue.
func (i *Issue) HasUpvote(userID primitive.ObjectID) bool {
	return containsID(i.Upvotes, userID)
}

// ToggleUpvote adds userID to the upvote set, or removes it when present.
// It returns true when the vote was added.
func (i *Issue) ToggleUpvote(userID primitive.ObjectID) bool {
	if i.HasUpvote(userID) {
		out := i.Upvotes[:0]
		for _, id := range i.Upvotes {
			if id != userID {
				out = append(out, id)
			}
		}
		i.Upvotes = out
		return false
	}
	i.Upvotes = append(i.Upvotes, userID)
	return true
}
