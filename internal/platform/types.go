package platform

import "fmt"

// SteamID is a 64-bit platform account identifier. The high bits encode
// universe and account type, the low 32 bits the account number.
type SteamID uint64

const (
	accountTypeIndividual = 1
	accountTypeClan       = 7
)

// AccountID returns the low 32 bits of the id.
func (id SteamID) AccountID() uint32 {
	return uint32(id & 0xFFFFFFFF)
}

// AccountType returns the 4-bit account type field.
func (id SteamID) AccountType() uint8 {
	return uint8((id >> 52) & 0xF)
}

// IsIndividual reports whether the id refers to a user account.
func (id SteamID) IsIndividual() bool {
	return id.AccountType() == accountTypeIndividual
}

// IsClan reports whether the id refers to a clan (group).
func (id SteamID) IsClan() bool {
	return id.AccountType() == accountTypeClan
}

// IsValid reports whether the id is non-zero.
func (id SteamID) IsValid() bool {
	return id != 0
}

func (id SteamID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// EResult is the platform's generic operation result code.
type EResult int32

const (
	ResultInvalid                         EResult = 0
	ResultOK                              EResult = 1
	ResultFail                            EResult = 2
	ResultNoConnection                    EResult = 3
	ResultInvalidPassword                 EResult = 5
	ResultTimeout                         EResult = 16
	ResultServiceUnavailable              EResult = 20
	ResultTryAnotherCM                    EResult = 48
	ResultAccountLogonDenied              EResult = 63
	ResultAccountLoginDeniedNeedTwoFactor EResult = 85
)

var resultNames = map[EResult]string{
	ResultInvalid:                         "Invalid",
	ResultOK:                              "OK",
	ResultFail:                            "Fail",
	ResultNoConnection:                    "NoConnection",
	ResultInvalidPassword:                 "InvalidPassword",
	ResultTimeout:                         "Timeout",
	ResultServiceUnavailable:              "ServiceUnavailable",
	ResultTryAnotherCM:                    "TryAnotherCM",
	ResultAccountLogonDenied:              "AccountLogonDenied",
	ResultAccountLoginDeniedNeedTwoFactor: "AccountLoginDeniedNeedTwoFactor",
}

func (r EResult) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("EResult(%d)", int32(r))
}

// FriendRelationship describes the state of a friendship edge.
type FriendRelationship int32

const (
	RelationshipNone             FriendRelationship = 0
	RelationshipBlocked          FriendRelationship = 1
	RelationshipRequestRecipient FriendRelationship = 2
	RelationshipFriend           FriendRelationship = 3
	RelationshipRequestInitiator FriendRelationship = 4
	RelationshipIgnored          FriendRelationship = 5
)

// Friend is a single entry of a friends-list callback.
type Friend struct {
	ID           SteamID
	Relationship FriendRelationship
}

// NotificationKind distinguishes user notification callbacks.
type NotificationKind int32

const (
	NotificationTrading NotificationKind = 1
	NotificationItems   NotificationKind = 2
)

// ChatEntryKind distinguishes chat message callbacks.
type ChatEntryKind int32

const (
	ChatEntryMessage ChatEntryKind = 1
	ChatEntryTyping  ChatEntryKind = 2
)
