package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamUnmarshalJSON(t *testing.T) {
	type testCase struct {
		check              func(t *testing.T, p *Param)
		expectedRawMessage []byte
	}
	msg := `["123", 123, null, true, ["str2", 3],
	  "0x2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"]`
	expected := []testCase{
		{
			check: func(t *testing.T, p *Param) {
				actualS, err := p.GetStringStrict()
				require.NoError(t, err)
				require.Equal(t, "123", actualS)
				actualS, err = p.GetString()
				require.NoError(t, err)
				require.Equal(t, "123", actualS)

				_, err = p.GetIntStrict()
				require.Error(t, err)
				actualI, err := p.GetInt()
				require.NoError(t, err)
				require.Equal(t, 123, actualI)

				_, err = p.GetBooleanStrict()
				require.Error(t, err)
				actualB, err := p.GetBoolean()
				require.NoError(t, err)
				require.Equal(t, true, actualB)
			},
			expectedRawMessage: []byte(`"123"`),
		},
		{
			check: func(t *testing.T, p *Param) {
				_, err := p.GetStringStrict()
				require.Error(t, err)
				actualS, err := p.GetString()
				require.NoError(t, err)
				require.Equal(t, "123", actualS)

				actualI, err := p.GetIntStrict()
				require.NoError(t, err)
				require.Equal(t, 123, actualI)

				_, err = p.GetBooleanStrict()
				require.Error(t, err)
				actualB, err := p.GetBoolean()
				require.NoError(t, err)
				require.Equal(t, true, actualB)
			},
			expectedRawMessage: []byte(`123`),
		},
		{
			check: func(t *testing.T, p *Param) {
				require.True(t, p.IsNull())

				_, err := p.GetStringStrict()
				require.Error(t, err)
				_, err = p.GetString()
				require.Error(t, err)
				_, err = p.GetIntStrict()
				require.Error(t, err)
				_, err = p.GetInt()
				require.Error(t, err)
				_, err = p.GetBoolean()
				require.Error(t, err)
				_, err = p.GetArray()
				require.Error(t, err)
			},
			expectedRawMessage: []byte(`null`),
		},
		{
			check: func(t *testing.T, p *Param) {
				actualB, err := p.GetBooleanStrict()
				require.NoError(t, err)
				require.Equal(t, true, actualB)

				_, err = p.GetStringStrict()
				require.Error(t, err)
				actualS, err := p.GetString()
				require.NoError(t, err)
				require.Equal(t, "true", actualS)

				_, err = p.GetIntStrict()
				require.Error(t, err)
				actualI, err := p.GetInt()
				require.NoError(t, err)
				require.Equal(t, 1, actualI)
			},
			expectedRawMessage: []byte(`true`),
		},
		{
			check: func(t *testing.T, p *Param) {
				a, err := p.GetArray()
				require.NoError(t, err)
				require.Equal(t, 2, len(a))

				s, err := a[0].GetString()
				require.NoError(t, err)
				require.Equal(t, "str2", s)
				i, err := a[1].GetInt()
				require.NoError(t, err)
				require.Equal(t, 3, i)

				_, err = p.GetStringStrict()
				require.Error(t, err)
				_, err = p.GetIntStrict()
				require.Error(t, err)
				_, err = p.GetBooleanStrict()
				require.Error(t, err)
			},
			expectedRawMessage: []byte(`["str2", 3]`),
		},
		{
			check: func(t *testing.T, p *Param) {
				u, err := p.GetUint256()
				require.NoError(t, err)
				expected, _ := util.Uint256DecodeStringBE("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
				require.Equal(t, expected, u)
			},
			expectedRawMessage: []byte(`"0x2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"`),
		},
	}

	var ps Params
	require.NoError(t, json.Unmarshal([]byte(msg), &ps))
	require.Equal(t, len(expected), len(ps))
	for i, tc := range expected {
		require.Equal(t, json.RawMessage(tc.expectedRawMessage), ps[i].RawMessage)
		tc.check(t, &ps[i])
	}
}

func TestGetKey(t *testing.T) {
	u, err := util.Uint256DecodeStringBE("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	require.NoError(t, err)

	valid := map[string]util.Uint256{
		`"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"`:   u,
		`"0x2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"`: u,
		fmt.Sprintf("%q", address.Uint256ToString(u)):                         u,
		`12345`:   {30: 0x30, 31: 0x39},
		`"12345"`: {30: 0x30, 31: 0x39},
		`0`:       {},
	}
	for in, expected := range valid {
		t.Run(in, func(t *testing.T) {
			p := Param{RawMessage: json.RawMessage(in)}
			actual, err := p.GetKey()
			require.NoError(t, err)
			require.Equal(t, expected, actual)
		})
	}

	invalid := []string{
		`null`,
		`-5`,
		`"-5"`,
		`"not a key"`,
		`"0xdeadbeef"`,
		// One over the maximum 256-bit value.
		`"115792089237316195423570985008687907853269984665640564039457584007913129639936"`,
	}
	for _, in := range invalid {
		t.Run(in, func(t *testing.T) {
			p := Param{RawMessage: json.RawMessage(in)}
			_, err := p.GetKey()
			require.Error(t, err)
		})
	}
}

func TestGetProof(t *testing.T) {
	tr := cmt.New(hash.Sha256, 0)
	key := hash.Sha256([]byte("member"))
	require.NoError(t, tr.Insert(key))
	proof := tr.GetProof(key)

	p := Param{RawMessage: json.RawMessage(fmt.Sprintf("%q", proof.String()))}
	actual, err := p.GetProof()
	require.NoError(t, err)
	require.Equal(t, proof, actual)

	for _, in := range []string{`null`, `123`, `"@@@"`, `""`} {
		p := Param{RawMessage: json.RawMessage(in)}
		_, err := p.GetProof()
		require.Error(t, err, in)
	}
}

func TestGetBigInt(t *testing.T) {
	p := Param{RawMessage: json.RawMessage(`"115792089237316195423570985008687907853269984665640564039457584007913129639936"`)}
	bi, err := p.GetBigInt()
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639936", 10)
	require.Equal(t, expected, bi)

	p = Param{RawMessage: json.RawMessage(`42`)}
	bi, err = p.GetBigInt()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), bi)

	p = Param{RawMessage: json.RawMessage(`"123q"`)}
	_, err = p.GetBigInt()
	require.Error(t, err)
}

func TestGetBytesBase64(t *testing.T) {
	str := "Aj4A6SbKxG+3q9/Z6anyeSk1yUmptMX9trJR6hbcQkUC"

	p := Param{RawMessage: json.RawMessage(fmt.Sprintf("%q", str))}
	b, err := p.GetBytesBase64()
	require.NoError(t, err)
	require.Equal(t, 33, len(b))

	p = Param{RawMessage: json.RawMessage(`"@#$%"`)}
	_, err = p.GetBytesBase64()
	require.Error(t, err)
}

func TestParamsValue(t *testing.T) {
	var ps Params
	require.NoError(t, json.Unmarshal([]byte(`["a", 1]`), &ps))

	require.NotNil(t, ps.Value(0))
	require.NotNil(t, ps.Value(1))
	require.Nil(t, ps.Value(2))

	s, err := ps.Value(0).GetString()
	require.NoError(t, err)
	assert.Equal(t, "a", s)
}

func TestRequestUnmarshalJSON(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		r := NewRequest()
		err := r.UnmarshalJSON([]byte(`{"jsonrpc":"2.0", "method":"getroot", "params":[], "id":1}`))
		require.NoError(t, err)
		require.NotNil(t, r.In)
		require.Nil(t, r.Batch)
		require.Equal(t, "getroot", r.In.Method)
	})
	t.Run("batch", func(t *testing.T) {
		r := NewRequest()
		err := r.UnmarshalJSON([]byte(`[{"jsonrpc":"2.0", "method":"getroot", "params":[], "id":1},
			{"jsonrpc":"2.0", "method":"getsize", "params":[], "id":2}]`))
		require.NoError(t, err)
		require.Nil(t, r.In)
		require.Equal(t, 2, len(r.Batch))
		require.Equal(t, "getsize", r.Batch[1].Method)
	})
	t.Run("empty batch", func(t *testing.T) {
		r := NewRequest()
		require.Error(t, r.UnmarshalJSON([]byte(`[]`)))
	})
	t.Run("garbage", func(t *testing.T) {
		r := NewRequest()
		require.Error(t, r.UnmarshalJSON([]byte(`"neither"`)))
	})
}

func TestDecodeData(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		data := `{"jsonrpc":"2.0", "method":"haskey", "params":["123"], "id":5}`
		r := NewRequest()
		err := r.DecodeData(io.NopCloser(strings.NewReader(data)))
		require.NoError(t, err)
		require.NotNil(t, r.In)
		require.Equal(t, 1, len(r.In.RawParams))
	})
	t.Run("trash", func(t *testing.T) {
		r := NewRequest()
		err := r.DecodeData(io.NopCloser(bytes.NewReader([]byte{0xff, 0x01})))
		require.Error(t, err)
	})
}

func TestNewIn(t *testing.T) {
	in := NewIn()
	require.Equal(t, "2.0", in.JSONRPC)
}
