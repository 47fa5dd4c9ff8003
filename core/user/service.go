package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUsernameExists   = errors.New("a user with this username already exists")
	ErrRollNumberExists = errors.New("a student with this roll number already exists")
	ErrEmployeeIDExists = errors.New("a faculty member with this employee id already exists")
	ErrInvalidResetLink = errors.New("invalid password reset link")

	uniqueFields = map[error]string{
		ErrUsernameExists:   "username",
		ErrEmailExists:      "email",
		ErrRollNumberExists: "roll_number",
		ErrEmployeeIDExists: "employee_id",
	}
)

type (
	Repository interface {
		// CheckUniqueness returns one of the Err*Exists errors
		// if another user (not in excludedUsers) holds one of the unique fields of usr.
		CheckUniqueness(ctx context.Context, usr User, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter) (int, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		tokenGen tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) checkUniqueness(usr User, exclUsers ...User) error {
	err := svc.repo.CheckUniqueness(context.Background(), usr, exclUsers...)
	if err == nil {
		return nil
	}
	if field, ok := uniqueFields[errors.Cause(err)]; ok {
		return core.NewFieldValidationError(field, err)
	}
	return err
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		Profile:   nu.Profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "user.Service.Create")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.CountUsers(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) GetByRollNumber(ctx context.Context, rollNo string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{RollNumber: core.CleanString(rollNo)})
}

// Update applies a validated UpdateUser to usr.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Roles = uu.Roles
	if uu.Profile != nil {
		usr.Profile = *uu.Profile
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = time.Now().UTC()
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "user.Service.Update")
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateOrCreate updates the user identified by username (or email) if it exists, else creates it.
func (svc *Service) UpdateOrCreate(ctx context.Context, nu NewUser, validate *validator.Validate) (User, error) {
	key := nu.Username
	if key == "" {
		key = nu.Email
	}
	usr, err := svc.GetByUsernameOrEmail(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := nu.Validate(validate, svc); err != nil {
			return User{}, err
		}
		return svc.Create(ctx, nu)
	case err != nil:
		return User{}, err
	}

	active := true
	uu := UpdateUser{
		Name:            nu.Name,
		Username:        nu.Username,
		Email:           nu.Email,
		IsActive:        &active,
		Roles:           nu.Roles,
		Password:        nu.Password,
		PasswordConfirm: nu.PasswordConfirm,
	}
	if nu.Profile != (Profile{}) {
		prof := nu.Profile
		uu.Profile = &prof
	}
	if err := uu.Validate(usr, validate, svc); err != nil {
		return User{}, err
	}
	return svc.Update(ctx, usr, uu)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// RequestPasswordReset emails a password reset link to the active user owning email.
// Unknown or inactive users are silently ignored.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(email, true /* lower */)})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !usr.IsActive || usr.Email == "" {
		return nil
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Password reset on %s", svc.conf.AppName),
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	})
	return nil
}

// ResetPassword sets a new password for the user identified by a valid password reset link.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword, validate *validator.Validate) (User, error) {
	if err := data.Validate(validate); err != nil {
		return User{}, err
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, ErrInvalidResetLink
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidResetLink
		}
		return User{}, err
	}
	if err := svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return User{}, ErrInvalidResetLink
	}

	uu := UpdateUser{Password: data.Password, PasswordConfirm: data.PasswordConfirm}
	if err := uu.Validate(usr, validate, svc); err != nil {
		return User{}, err
	}
	return svc.Update(ctx, usr, uu)
}

// MakeResetToken returns the UID and token of a password reset link for usr.
func (svc *Service) MakeResetToken(usr User) (uid, token string) {
	return EncodeUID(usr), svc.tokenGen.makeToken(usr)
}
