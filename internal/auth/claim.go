package auth

import "github.com/sakif/jobmatch-auth/internal/model"

// TrustTier records how much an identity claim was actually proven.
// Downstream policy must be able to tell the paths apart, so the tier travels
// with every claim instead of collapsing into a single "authenticated" flag.
type TrustTier string

const (
	// TrustNone: the caller simply asserted a name and role.
	TrustNone TrustTier = "none"
	// TrustDelegated: a remote service vouched for the token; nothing was
	// checked locally.
	TrustDelegated TrustTier = "delegated"
	// TrustVerified: the credential's signature and audience were checked here.
	TrustVerified TrustTier = "verified"
)

// Path names the entry path a claim came through.
type Path string

const (
	PathPlain    Path = "plain"
	PathGoogle   Path = "google"
	PathSupabase Path = "supabase"
)

// Claim is a normalized bundle of identity facts from one entry path.
// The concrete types are PlainClaim, GoogleClaim and SupabaseClaim; the
// resolver switches on them.
type Claim interface {
	Path() Path
	Trust() TrustTier
	claim()
}

// PlainClaim is an unverified (name, role) assertion.
//
// Whoever sends a matching name and role gets that account. There is no
// secret involved; see the plain-login notes in DESIGN.md before relying on it.
type PlainClaim struct {
	Name     string
	Role     model.Role
	Email    string
	Password string // optional; hashed on create, never checked
}

// GoogleClaim is the verified payload of a Google ID token.
type GoogleClaim struct {
	Subject       string // providerKey
	Name          string
	Email         string
	Picture       string
	EmailVerified bool
	RoleHint      model.Role // caller-supplied; only employer is honoured
}

// SupabaseClaim is the user Supabase Auth returned for a bearer token.
type SupabaseClaim struct {
	UserID   string // providerKey
	Name     string
	Email    string
	RoleHint string // raw user_metadata.role, normalised by the resolver
}

func (PlainClaim) Path() Path    { return PathPlain }
func (GoogleClaim) Path() Path   { return PathGoogle }
func (SupabaseClaim) Path() Path { return PathSupabase }

func (PlainClaim) Trust() TrustTier    { return TrustNone }
func (GoogleClaim) Trust() TrustTier   { return TrustVerified }
func (SupabaseClaim) Trust() TrustTier { return TrustDelegated }

func (PlainClaim) claim()    {}
func (GoogleClaim) claim()   {}
func (SupabaseClaim) claim() {}
