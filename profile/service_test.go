package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/repository"
)

type fakeQuerier struct {
	profiles map[uuid.UUID]repository.Profile
	err      error
}

func (f *fakeQuerier) FindProfileByUserId(
	c context.Context,
	userID uuid.UUID,
) (repository.Profile, error) {
	if f.err != nil {
		return repository.Profile{}, f.err
	}
	profile, ok := f.profiles[userID]
	if !ok {
		return repository.Profile{}, pgx.ErrNoRows
	}
	return profile, nil
}

func (f *fakeQuerier) UpsertProfilePhoneNumber(
	c context.Context,
	arg repository.UpsertProfilePhoneNumberParams,
) (repository.Profile, error) {
	if f.err != nil {
		return repository.Profile{}, f.err
	}
	profile := f.profiles[arg.UserID]
	profile.UserID = arg.UserID
	profile.PhoneNumber = arg.PhoneNumber
	f.profiles[arg.UserID] = profile
	return profile, nil
}

func TestPhoneNumber(t *testing.T) {
	c := context.Background()
	queries := &fakeQuerier{profiles: map[uuid.UUID]repository.Profile{}}
	service := NewProfileService(queries)
	userId := uuid.New()

	phone, err := service.PhoneNumber(c, userId)
	require.NoError(t, err)
	assert.Empty(t, phone)

	require.NoError(t, service.SavePhoneNumber(c, userId, "+6281234567890"))
	phone, err = service.PhoneNumber(c, userId)
	require.NoError(t, err)
	assert.Equal(t, "+6281234567890", phone)
}

func TestSavePhoneNumberValidation(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		invalid bool
	}{
		{name: "given e164 number should save", phone: "+14155550100"},
		{name: "given empty number should reject", phone: "", invalid: true},
		{name: "given number without plus should reject", phone: "081234567890", invalid: true},
		{name: "given number with letters should reject", phone: "+1415CALLNOW", invalid: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			queries := &fakeQuerier{profiles: map[uuid.UUID]repository.Profile{}}
			service := NewProfileService(queries)

			err := service.SavePhoneNumber(context.Background(), uuid.New(), test.phone)
			if test.invalid {
				validationErrors := validator.ValidationErrors{}
				assert.True(t, errors.As(err, &validationErrors))
				assert.Empty(t, queries.profiles)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, queries.profiles, 1)
		})
	}
}

func TestPhoneNumberFailure(t *testing.T) {
	service := NewProfileService(&fakeQuerier{err: errors.New("connection reset")})
	_, err := service.PhoneNumber(context.Background(), uuid.New())
	assert.Error(t, err)
}
