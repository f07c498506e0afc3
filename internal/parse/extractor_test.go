package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UnknownLanguage(t *testing.T) {
	r := NewRegistry()
	features, syntaxErr := r.Extract("cobol", "whatever", "x.cbl")
	assert.False(t, syntaxErr)
	assert.Empty(t, features.Functions)
}

func TestPythonExtractor_DecoratorEndpoint(t *testing.T) {
	src := `
from flask import Flask
app = Flask(__name__)

@app.route("/hello", methods=["GET"])
def hello():
    return "hi"
`
	r := NewRegistry()
	features, syntaxErr := r.Extract("python", src, "app.py")
	require.False(t, syntaxErr)
	require.Len(t, features.Endpoints, 1)
	assert.Equal(t, "GET", features.Endpoints[0].Verb)
	assert.Equal(t, "/hello", features.Endpoints[0].Route)
	require.Len(t, features.Functions, 1)
	assert.Equal(t, "hello", features.Functions[0].Name)
}

func TestJavaScriptExtractor_MiddlewareChainEndpoint(t *testing.T) {
	src := `
const router = require('express').Router()

router.get('/users', (req, res) => {
  res.send(users)
})

function listUsers() {}
`
	r := NewRegistry()
	features, _ := r.Extract("javascript", src, "routes.js")
	require.Len(t, features.Endpoints, 1)
	assert.Equal(t, "GET", features.Endpoints[0].Verb)
	assert.Equal(t, "/users", features.Endpoints[0].Route)
	require.Len(t, features.Functions, 1)
	assert.Equal(t, "listUsers", features.Functions[0].Name)
}

func TestJavaExtractor_AnnotatedControllerEndpoint(t *testing.T) {
	src := `
@RestController
public class UserController {
    @GetMapping("/users")
    public List<User> listUsers() {
        return users;
    }
}

@Entity
public class User {
    private Long id;
    private String name;
}
`
	r := NewRegistry()
	features, _ := r.Extract("java", src, "UserController.java")
	require.Len(t, features.Endpoints, 1)
	assert.Equal(t, "GET", features.Endpoints[0].Verb)
	assert.Equal(t, "/users", features.Endpoints[0].Route)
	require.Len(t, features.Classes, 2)
	require.Len(t, features.Schemas, 1)
	assert.Equal(t, "User", features.Schemas[0].Name)
	assert.Len(t, features.Schemas[0].Fields, 2)
}

func TestCSharpExtractor_AttributeRoutingEndpoint(t *testing.T) {
	src := `
public class UsersController {
    [HttpGet("/users")]
    public IActionResult ListUsers() {
        return Ok(users);
    }
}

public class UserModel {
    public int Id { get; set; }
    public string Name { get; set; }
}
`
	r := NewRegistry()
	features, _ := r.Extract("csharp", src, "UsersController.cs")
	require.Len(t, features.Endpoints, 1)
	assert.Equal(t, "GET", features.Endpoints[0].Verb)
	assert.Equal(t, "/users", features.Endpoints[0].Route)
	require.Len(t, features.Schemas, 1)
	assert.Equal(t, "UserModel", features.Schemas[0].Name)
}

func TestSQLExtractor_CreateTable(t *testing.T) {
	src := `
CREATE TABLE users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255),
    email VARCHAR(255)
);
`
	r := NewRegistry()
	features, _ := r.Extract("sql", src, "schema.sql")
	require.Len(t, features.Schemas, 1)
	assert.Equal(t, "users", features.Schemas[0].Name)
	assert.GreaterOrEqual(t, len(features.Schemas[0].Fields), 2)
}
