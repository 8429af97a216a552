package api

import (
	"crypto"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWT 是能力型憑證的宣告內容，Address 為呼叫者的結算地址
type JWT struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

func ParseAndValidateJWT(tokenString string, secret crypto.Signer) (*JWT, error) {
	const op = "ParseJWT"
	// 只接受Ed25519簽章，阻擋以公鑰作為HMAC金鑰的演算法混淆
	token, err := jwt.ParseWithClaims(tokenString, &JWT{}, func(token *jwt.Token) (interface{}, error) {
		return secret.Public(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: token is invalid", op)
	}
	claims, ok := token.Claims.(*JWT)
	if !ok {
		return nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	return claims, nil
}
