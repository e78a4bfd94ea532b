package model

import "sort"

// VoteKind — вид голоса пользователя за файл.
type VoteKind string

const (
	// VoteLike — «нравится».
	VoteLike VoteKind = "like"
	// VoteDislike — «не нравится».
	VoteDislike VoteKind = "dislike"
)

// Valid проверяет, что вид голоса известен.
func (k VoteKind) Valid() bool {
	return k == VoteLike || k == VoteDislike
}

// VoteSet — голоса за файл, ключ — userID.
// Один пользователь хранит ровно один голос, поэтому множества likes и
// dislikes не пересекаются по построению.
type VoteSet map[string]VoteKind

// Toggle применяет нажатие кнопки kind от пользователя userID.
// Повторное нажатие снимает голос, нажатие противоположной кнопки
// заменяет голос. Возвращает итоговый голос и признак его наличия.
func (s VoteSet) Toggle(userID string, kind VoteKind) (VoteKind, bool) {
	if current, ok := s[userID]; ok && current == kind {
		delete(s, userID)
		return "", false
	}
	s[userID] = kind
	return kind, true
}

// Likes возвращает отсортированный список пользователей с голосом like.
func (s VoteSet) Likes() []string {
	return s.members(VoteLike)
}

// Dislikes возвращает отсортированный список пользователей с голосом dislike.
func (s VoteSet) Dislikes() []string {
	return s.members(VoteDislike)
}

// Clone возвращает независимую копию множества.
func (s VoteSet) Clone() VoteSet {
	c := make(VoteSet, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

func (s VoteSet) members(kind VoteKind) []string {
	result := make([]string, 0, len(s))
	for userID, k := range s {
		if k == kind {
			result = append(result, userID)
		}
	}
	sort.Strings(result)
	return result
}
