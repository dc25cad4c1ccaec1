package auth

import (
	"testing"
	"time"
)

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("Str0ngEnough")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "Str0ngEnough"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password must not verify")
	}
}

func TestTokenRoundtripCarriesScopeTuple(t *testing.T) {
	claims := Claims{
		UserID: "u1", RoleID: "r1", RoleName: "Manager",
		TeamID: "T1", DepartmentID: "D1", LocationID: "L1", CompanyID: "C1",
	}
	token, err := GenerateToken("secret", claims, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parsed, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != "u1" || parsed.TeamID != "T1" || parsed.CompanyID != "C1" {
		t.Fatalf("unexpected claims: %+v", parsed)
	}

	uc := parsed.UserContext()
	if uc.UserID != "u1" || uc.DepartmentID != "D1" || uc.LocationID != "L1" {
		t.Fatalf("user context lost fields: %+v", uc)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("wrong secret must fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expired token must fail")
	}
}
