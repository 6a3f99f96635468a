// Package docs holds the Swagger document served at /swagger. It mirrors the
// handler annotations in controllers and is maintained by hand.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new account",
                "parameters": [{"description": "Account details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.SignupRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in with email and password",
                "parameters": [{"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        },
        "/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Clear the session cookie",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/profile": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user's profile",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/about": {
            "put": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Replace the caller's about text",
                "parameters": [{"description": "About text", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateAboutRequest"}}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/{userId}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Another user's profile",
                "parameters": [{"type": "integer", "description": "User ID", "name": "userId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/post/allPost": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List published posts",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "sortBy", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "tag", "in": "query"},
                    {"type": "boolean", "name": "featured", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostPage"}}}
            }
        },
        "/post/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Search published posts",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query"},
                    {"type": "string", "name": "tag", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "author", "in": "query"},
                    {"type": "string", "name": "sortBy", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostPage"}}}
            }
        },
        "/post/popular": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Most viewed published posts",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "timeframe", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/post/tags": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Tag usage counts across published posts",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/post/tag/{tag}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Published posts carrying a tag",
                "parameters": [
                    {"type": "string", "name": "tag", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/post/slug/{slug}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Fetch a post by slug",
                "parameters": [{"type": "string", "name": "slug", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/post/view/{id}": {
            "post": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Count a view",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/post/post/{id}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Fetch a post with its likes and comments",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/post/user": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "The caller's posts, drafts included",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "boolean", "name": "draft", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostPage"}}}
            }
        },
        "/post/user/{userId}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Published posts of one author",
                "parameters": [
                    {"type": "integer", "name": "userId", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostPage"}}}
            }
        },
        "/post/create-post": {
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [{"description": "Post", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CreatePostRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/post/update-post/{id}": {
            "put": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Update one of the caller's posts",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"description": "Changed fields", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdatePostRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/post/delete-post/{id}": {
            "delete": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Delete one of the caller's posts",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/post/like/{id}": {
            "post": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Like or unlike a post",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/post/comment/{id}": {
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Comment on a post",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"description": "Comment", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CommentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/post/comment/{id}/{commentId}": {
            "delete": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Delete a comment as its writer or the post's author",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "commentId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/post/featured/{id}": {
            "patch": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Feature or unfeature a post",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/ws": {
            "get": {
                "security": [{"CookieAuth": []}],
                "tags": ["notifications"],
                "summary": "Subscribe to post_liked and comment_added notifications",
                "parameters": [{"type": "string", "name": "token", "in": "query"}],
                "responses": {}
            }
        }
    },
    "definitions": {
        "models.SignupRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.UpdateAboutRequest": {
            "type": "object",
            "properties": {"about": {"type": "string"}}
        },
        "models.CreatePostRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "excerpt": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "image": {"type": "string"},
                "category": {"type": "string"},
                "isPublished": {"type": "boolean"}
            }
        },
        "models.UpdatePostRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "excerpt": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "image": {"type": "string"},
                "category": {"type": "string"},
                "isPublished": {"type": "boolean"}
            }
        },
        "models.CommentRequest": {
            "type": "object",
            "properties": {"text": {"type": "string"}}
        },
        "models.PostPage": {
            "type": "object",
            "properties": {
                "posts": {"type": "array", "items": {"type": "object"}},
                "totalPages": {"type": "integer"},
                "currentPage": {"type": "integer"},
                "total": {"type": "integer"},
                "hasNext": {"type": "boolean"},
                "hasPrev": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "CookieAuth": {
            "type": "apiKey",
            "name": "token",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Blog API",
	Description:      "Posts, comments, likes and live notifications for a multi-author blog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
