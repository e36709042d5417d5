package store

import (
	"slices"

	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/intent"
)

// Reduce applies a to s and returns the next state. It never mutates s and
// is total: unknown intents return s unchanged.
func Reduce(s State, a intent.Action) State {
	s.Auth = reduceAuth(s.Auth, a)
	s.Certificates = reduceCertificates(s.Certificates, a)
	s.Wallet = reduceWallet(s.Wallet, a)
	return s
}

func reduceAuth(s AuthState, a intent.Action) AuthState {
	switch a := a.(type) {
	case intent.Login:
		return AuthState{IsLoading: true}
	case intent.LoginSuccess:
		return AuthState{Session: a.Session.Clone(), IsLoggingSuccess: true}
	case intent.LoginFailure:
		return AuthState{Error: a.Message}
	case intent.Logout:
		return AuthState{}
	case intent.CleanAuthStatus:
		s.IsLoading = false
		s.IsLoggingSuccess = false
		s.Error = ""
	}
	return s
}

func reduceCertificates(s CertificateState, a intent.Action) CertificateState {
	switch a := a.(type) {
	case intent.FetchAll:
		s.IsLoading = true
		s.Error = ""
		s.Certificates = nil
	case intent.FetchAllSuccess:
		s.IsLoading = false
		s.Certificates = slices.Clone(a.Certificates)
	case intent.FetchAllFailure:
		s.IsLoading = false
		s.Error = a.Message
	case intent.Create:
		s.IsLoading = true
		s.Error = ""
		s.IsCreateSuccess = false
	case intent.CreateSuccess:
		s.IsLoading = false
		s.Error = ""
		s.IsCreateSuccess = true
		s.Certificates = append(slices.Clip(s.Certificates), a.Certificate)
	case intent.CreateFailure:
		s.IsLoading = false
		s.IsCreateSuccess = false
		s.Error = a.Message
	case intent.Update:
		s.IsLoading = true
		s.Error = ""
		s.IsUpdateSuccess = false
	case intent.UpdateSuccess:
		s.IsLoading = false
		s.Error = ""
		s.IsUpdateSuccess = true
		s.Certificates = replaceByID(s.Certificates, a)
		sel := a.Certificate
		s.Selected = &sel
	case intent.UpdateFailure:
		s.IsLoading = false
		s.IsUpdateSuccess = false
		s.Error = a.Message
	case intent.CleanUp:
		return CertificateState{}
	case intent.CleanUpStatus:
		s.IsLoading = false
		s.IsCreateSuccess = false
		s.IsUpdateSuccess = false
		s.IsDeleteSuccess = false
		s.Error = ""
	case intent.Logout:
		return CertificateState{}
	}
	return s
}

func replaceByID(certs []certificate.Certificate, a intent.UpdateSuccess) []certificate.Certificate {
	out := slices.Clone(certs)
	for i := range out {
		if out[i].ID == a.Certificate.ID {
			out[i] = a.Certificate
		}
	}
	return out
}

func reduceWallet(s WalletState, a intent.Action) WalletState {
	switch a := a.(type) {
	case intent.CreateAsset:
		return WalletState{IsLoading: true}
	case intent.CreateAssetSuccess:
		return WalletState{TxHash: a.TxHash, AssetURL: a.AssetURL, IsCreateSuccess: true}
	case intent.CreateAssetFailure:
		return WalletState{Error: a.Message}
	case intent.CleanWalletStatus:
		s.IsLoading = false
		s.IsCreateSuccess = false
		s.Error = ""
	case intent.Logout:
		return WalletState{}
	}
	return s
}
