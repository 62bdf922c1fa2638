package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteUserProfile_UnmarshalCurrentFields(t *testing.T) {
	req := require.New(t)
	var p RemoteUserProfile
	req.NoError(json.Unmarshal([]byte(`{"id":2,"displayName":"bob","contact":"bob@x","status":1,"bio":"hi","avatarRef":"a/2.png"}`), &p))
	req.Equal(RemoteUserProfile{ID: 2, DisplayName: "bob", Contact: "bob@x", Status: 1, Bio: "hi", AvatarRef: "a/2.png"}, p)
}

func TestRemoteUserProfile_UnmarshalLegacyAliases(t *testing.T) {
	req := require.New(t)
	var p RemoteUserProfile
	req.NoError(json.Unmarshal([]byte(`{"id":3,"username":"cat","email":"cat@x","imageId":17}`), &p))
	req.Equal("cat", p.DisplayName)
	req.Equal("cat@x", p.Contact)
	req.Equal("17", p.AvatarRef)
}

func TestRemoteUserProfile_CurrentFieldWins(t *testing.T) {
	req := require.New(t)
	var p RemoteUserProfile
	req.NoError(json.Unmarshal([]byte(`{"id":4,"displayName":"dan","username":"old","avatarRef":null,"imageId":"img-4"}`), &p))
	req.Equal("dan", p.DisplayName)
	req.Equal("img-4", p.AvatarRef)
}

func TestRemoteUserProfile_RoundTripUsesCurrentNames(t *testing.T) {
	req := require.New(t)
	in := RemoteUserProfile{ID: 5, DisplayName: "eve", AvatarRef: "x"}
	b, err := json.Marshal(in)
	req.NoError(err)
	req.Contains(string(b), `"displayName":"eve"`)

	var out RemoteUserProfile
	req.NoError(json.Unmarshal(b, &out))
	req.Equal(in, out)
}
