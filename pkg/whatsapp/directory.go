package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
)

const unknownName = "Unknown"

// Contact is one address-book or group-member record as exposed over
// the API and in exports.
type Contact struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	Name           string `json:"name"`
	IsSavedContact bool   `json:"isSavedContact"`
	IsBusiness     bool   `json:"isBusiness,omitempty"`
}

// Group carries a heterogeneous participant count: an int when the
// member list is known, the string "Unknown" when it is not.
type Group struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ParticipantCount any    `json:"participantCount"`
}

// GroupContactsResult is the envelope for a group member extraction.
// Error is set only when Success is false.
type GroupContactsResult struct {
	Success          bool      `json:"success"`
	GroupName        string    `json:"groupName,omitempty"`
	ParticipantCount int       `json:"participantCount,omitempty"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Error            string    `json:"error,omitempty"`
}

type cachedGroup struct {
	name         string
	participants []types.GroupParticipant
}

var (
	groupCacheMu sync.RWMutex
	groupCache   = make(map[string]cachedGroup)
)

// ExtractAllContacts lists the saved address book. A contact counts as
// saved when the synced record carries a first or full name; entries
// without a usable phone number are dropped.
func ExtractAllContacts(ctx context.Context) ([]Contact, error) {
	waClient, err := currentClient()
	if err != nil {
		return nil, err
	}
	if err := isClientOK(waClient); err != nil {
		return nil, err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := waClient.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(records))
	for jid, info := range records {
		if !isSavedContact(info) {
			continue
		}
		number := DecomposeJID(jid.User)
		if number == "" {
			continue
		}
		contacts = append(contacts, Contact{
			ID:             jid.String(),
			Number:         number,
			Name:           contactDisplayName(info),
			IsSavedContact: true,
			IsBusiness:     info.BusinessName != "",
		})
	}

	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Number < contacts[j].Number
	})
	return contacts, nil
}

// ExtractAllGroups lists joined groups and primes the participant cache
// so a subsequent member extraction can resolve without a refetch.
func ExtractAllGroups(ctx context.Context) ([]Group, error) {
	waClient, err := currentClient()
	if err != nil {
		return nil, err
	}
	if err := isClientOK(waClient); err != nil {
		return nil, err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return extractAllGroupsLocked(ctx, waClient)
}

func extractAllGroupsLocked(ctx context.Context, waClient whatsmeowClient) ([]Group, error) {
	infos, err := waClient.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(infos))
	for _, info := range infos {
		group := Group{
			ID:               info.JID.String(),
			Name:             info.Name,
			ParticipantCount: unknownName,
		}
		if len(info.Participants) > 0 {
			group.ParticipantCount = len(info.Participants)
			storeGroupCache(info.JID.String(), info.Name, info.Participants)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func storeGroupCache(groupID string, name string, participants []types.GroupParticipant) {
	groupCacheMu.Lock()
	groupCache[groupID] = cachedGroup{
		name:         name,
		participants: append([]types.GroupParticipant(nil), participants...),
	}
	groupCacheMu.Unlock()
}

// whatsmeowClient is the slice of the client used by the participant
// resolvers, split out so the resolver chain is testable with fakes.
type whatsmeowClient interface {
	GetGroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error)
	GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error)
	GetLinkedGroupsParticipants(ctx context.Context, community types.JID) ([]types.JID, error)
}

type participantResolver struct {
	name    string
	resolve func(ctx context.Context, waClient whatsmeowClient, groupJID types.JID) (string, []types.GroupParticipant, error)
}

// The resolver chain runs in fixed order: the cached snapshot from the
// last group listing, a direct metadata fetch, a full joined-group
// refresh, then the linked-community participant query. The first
// resolver returning a non-empty member list wins.
var participantResolvers = []participantResolver{
	{name: "cached-metadata", resolve: resolveFromCache},
	{name: "fetch-group-info", resolve: resolveFromGroupInfo},
	{name: "refresh-group-list", resolve: resolveFromGroupListRefresh},
	{name: "linked-participants", resolve: resolveFromLinkedParticipants},
}

func resolveFromCache(_ context.Context, _ whatsmeowClient, groupJID types.JID) (string, []types.GroupParticipant, error) {
	groupCacheMu.RLock()
	cached, ok := groupCache[groupJID.String()]
	groupCacheMu.RUnlock()
	if !ok {
		return "", nil, nil
	}
	return cached.name, cached.participants, nil
}

func resolveFromGroupInfo(ctx context.Context, waClient whatsmeowClient, groupJID types.JID) (string, []types.GroupParticipant, error) {
	info, err := waClient.GetGroupInfo(ctx, groupJID)
	if err != nil || info == nil {
		return "", nil, err
	}
	return info.Name, info.Participants, nil
}

func resolveFromGroupListRefresh(ctx context.Context, waClient whatsmeowClient, groupJID types.JID) (string, []types.GroupParticipant, error) {
	infos, err := waClient.GetJoinedGroups(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, info := range infos {
		if len(info.Participants) > 0 {
			storeGroupCache(info.JID.String(), info.Name, info.Participants)
		}
		if info.JID == groupJID {
			return info.Name, info.Participants, nil
		}
	}
	return "", nil, nil
}

func resolveFromLinkedParticipants(ctx context.Context, waClient whatsmeowClient, groupJID types.JID) (string, []types.GroupParticipant, error) {
	memberJIDs, err := waClient.GetLinkedGroupsParticipants(ctx, groupJID)
	if err != nil {
		return "", nil, err
	}
	participants := make([]types.GroupParticipant, 0, len(memberJIDs))
	for _, memberJID := range memberJIDs {
		participants = append(participants, types.GroupParticipant{JID: memberJID})
	}
	return "", participants, nil
}

// ExtractGroupContacts resolves the member list of one group and turns
// each member into a contact record. Resolution failures produce an
// error envelope rather than an HTTP-level error; a member whose
// address-book lookup fails still yields a degraded record.
func ExtractGroupContacts(ctx context.Context, groupID string) GroupContactsResult {
	waClient, err := currentClient()
	if err != nil {
		return GroupContactsResult{Success: false, Error: err.Error()}
	}
	if err := isClientOK(waClient); err != nil {
		return GroupContactsResult{Success: false, Error: err.Error()}
	}

	groupJID, err := types.ParseJID(groupID)
	if err != nil {
		return GroupContactsResult{Success: false, Error: fmt.Sprintf("invalid group id: %s", groupID)}
	}
	if groupJID.Server != types.GroupServer {
		groupJID = types.NewJID(groupJID.User, types.GroupServer)
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return GroupContactsResult{Success: false, Error: err.Error()}
	}
	defer release()

	name, participants, err := resolveParticipants(ctx, waClient, groupJID, participantResolvers)
	if err != nil {
		return GroupContactsResult{Success: false, Error: err.Error()}
	}

	contacts := make([]Contact, 0, len(participants))
	for _, participant := range participants {
		contacts = append(contacts, participantContact(ctx, waClient.Store.Contacts, participant))
	}

	if name == "" {
		name = groupJID.String()
	}
	return GroupContactsResult{
		Success:          true,
		GroupName:        name,
		ParticipantCount: len(contacts),
		Contacts:         contacts,
	}
}

func resolveParticipants(ctx context.Context, waClient whatsmeowClient, groupJID types.JID, resolvers []participantResolver) (string, []types.GroupParticipant, error) {
	var lastErr error
	for _, resolver := range resolvers {
		name, participants, err := resolver.resolve(ctx, waClient, groupJID)
		if err != nil {
			log.Op("ExtractGroupContacts").
				WithField("resolver", resolver.name).
				WithField("group", groupJID.String()).
				WithError(err).
				Warn("Participant resolver failed, trying next")
			lastErr = err
			continue
		}
		if len(participants) > 0 {
			log.Op("ExtractGroupContacts").
				WithField("resolver", resolver.name).
				WithField("group", groupJID.String()).
				WithField("participants", len(participants)).
				Info("Participants resolved")
			return name, participants, nil
		}
	}
	if lastErr != nil {
		return "", nil, lastErr
	}
	return "", nil, errors.New("unable to resolve group participants: " + groupJID.String())
}

// participantIdentity picks the best identifier a group member record
// carries. Records come in three variants: phone number known, personal
// JID known, or only the anonymized LID known.
func participantIdentity(participant types.GroupParticipant) (number string, lookupJID types.JID) {
	if participant.PhoneNumber.User != "" {
		return participant.PhoneNumber.User, participant.PhoneNumber
	}
	if participant.JID.Server == types.DefaultUserServer && participant.JID.User != "" {
		return participant.JID.User, participant.JID
	}
	if !participant.LID.IsEmpty() {
		return "", participant.LID
	}
	return "", participant.JID
}

type contactGetter interface {
	GetContact(ctx context.Context, jid types.JID) (types.ContactInfo, error)
}

func participantContact(ctx context.Context, contacts contactGetter, participant types.GroupParticipant) Contact {
	number, lookupJID := participantIdentity(participant)

	contact := Contact{
		ID:     lookupJID.String(),
		Number: number,
		Name:   unknownName,
	}

	info, err := contacts.GetContact(ctx, lookupJID)
	if err != nil {
		log.Op("ExtractGroupContacts").
			WithField("participant", lookupJID.String()).
			WithError(err).
			Warn("Contact lookup failed, emitting degraded record")
		return contact
	}

	if name := contactDisplayName(info); name != "" {
		contact.Name = name
	}
	contact.IsSavedContact = isSavedContact(info)
	contact.IsBusiness = info.BusinessName != ""
	return contact
}

func isSavedContact(info types.ContactInfo) bool {
	return info.FullName != "" || info.FirstName != ""
}

func contactDisplayName(info types.ContactInfo) string {
	switch {
	case info.FullName != "":
		return info.FullName
	case info.FirstName != "":
		return info.FirstName
	case info.PushName != "":
		return info.PushName
	case info.BusinessName != "":
		return info.BusinessName
	}
	return ""
}
